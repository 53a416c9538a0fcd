package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scheduling-service/lifecycle")

// Manager applies status transitions and staff transfers to existing
// appointments. Every mutation runs under the tenant's unit of work and
// emits its event only after the write has committed.
type Manager struct {
	store      storage.Store
	dispatcher notify.Dispatcher
	metrics    *metrics.Metrics
	clock      clock.Clock
	logger     *slog.Logger
}

func NewManager(store storage.Store, dispatcher notify.Dispatcher, m *metrics.Metrics, clk clock.Clock, logger *slog.Logger) *Manager {
	if clk == nil {
		clk = clock.WallClock
	}
	if dispatcher == nil {
		dispatcher = notify.NewLogDispatcher(logger)
	}
	return &Manager{store: store, dispatcher: dispatcher, metrics: m, clock: clk, logger: logger}
}

func (m *Manager) Get(ctx context.Context, tenantID, id string) (model.Appointment, error) {
	return m.store.GetAppointment(ctx, tenantID, strings.TrimSpace(id))
}

func (m *Manager) List(ctx context.Context, tenantID string, f storage.AppointmentFilter) ([]model.Appointment, error) {
	appts, err := m.store.ListAppointments(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	return appts, nil
}

// Transition moves an appointment to status to. Illegal moves return a
// *model.TransitionError and leave the appointment untouched.
func (m *Manager) Transition(ctx context.Context, tenantID, id string, to model.Status, actor string) (model.Appointment, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.transition")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("appointment.id", id), attribute.String("status.to", string(to)))

	id = strings.TrimSpace(id)
	if id == "" {
		return model.Appointment{}, fmt.Errorf("%w: appointment id is required", model.ErrInvalidInput)
	}
	to, err := model.ParseStatus(string(to))
	if err != nil {
		return model.Appointment{}, err
	}

	var (
		appt model.Appointment
		from model.Status
	)
	err = m.store.WithTenantLock(ctx, tenantID, func(tx storage.Tx) error {
		var err error
		if appt, err = tx.GetAppointment(ctx, tenantID, id); err != nil {
			return err
		}
		from = appt.Status
		if err := model.CheckTransition(from, to); err != nil {
			return err
		}
		appt.Status = to
		appt.UpdatedAt = m.clock.Now().UTC()
		return tx.UpdateAppointment(ctx, appt)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition rejected")
		return model.Appointment{}, err
	}

	m.metrics.Transition(string(from), string(to))
	m.logger.InfoContext(ctx, "appointment status changed",
		"tenant_id", tenantID,
		"appointment_id", appt.ID,
		"from", string(from),
		"to", string(to),
		"actor", actor,
	)
	m.dispatcher.Dispatch(ctx, notify.StatusChanged(from, appt, actor, appt.UpdatedAt))
	return appt, nil
}

type TransferRequest struct {
	TenantID      string
	AppointmentID string
	ToStaffID     string
	TransferredBy string
	Reason        string
}

// TransferStaff reassigns an appointment and appends exactly one transfer
// record, both in the same unit of work.
func (m *Manager) TransferStaff(ctx context.Context, req TransferRequest) (model.Appointment, model.StaffTransfer, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.transfer_staff")
	defer span.End()

	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.ToStaffID = strings.TrimSpace(req.ToStaffID)
	req.TransferredBy = strings.TrimSpace(req.TransferredBy)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" || req.ToStaffID == "" || req.TransferredBy == "" {
		return model.Appointment{}, model.StaffTransfer{}, fmt.Errorf("%w: appointment, target staff and actor are required", model.ErrInvalidInput)
	}
	span.SetAttributes(attribute.String("tenant.id", req.TenantID), attribute.String("appointment.id", req.AppointmentID))

	var (
		appt model.Appointment
		tr   model.StaffTransfer
	)
	err := m.store.WithTenantLock(ctx, req.TenantID, func(tx storage.Tx) error {
		var err error
		if appt, err = tx.GetAppointment(ctx, req.TenantID, req.AppointmentID); err != nil {
			return err
		}
		if appt.Status.IsTerminal() {
			return &model.TransitionError{From: appt.Status, To: appt.Status}
		}
		staff, err := tx.GetStaff(ctx, req.TenantID, req.ToStaffID)
		if err != nil {
			return err
		}
		if !staff.IsActive {
			return fmt.Errorf("%w: staff %s is inactive", model.ErrInvalidInput, staff.ID)
		}

		now := m.clock.Now().UTC()
		tr = model.StaffTransfer{
			ID:            uuid.NewString(),
			AppointmentID: appt.ID,
			TenantID:      appt.TenantID,
			FromStaffID:   appt.AssignedStaffID,
			ToStaffID:     staff.ID,
			TransferredBy: req.TransferredBy,
			Reason:        req.Reason,
			CreatedAt:     now,
		}
		appt.AssignedStaffID = staff.ID
		appt.UpdatedAt = now
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return err
		}
		return tx.InsertTransfer(ctx, tr)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer rejected")
		return model.Appointment{}, model.StaffTransfer{}, err
	}

	m.metrics.Transfer()
	m.logger.InfoContext(ctx, "appointment staff transferred",
		"tenant_id", req.TenantID,
		"appointment_id", appt.ID,
		"from_staff_id", tr.FromStaffID,
		"to_staff_id", tr.ToStaffID,
		"actor", tr.TransferredBy,
	)
	m.dispatcher.Dispatch(ctx, notify.StaffTransferred(tr, appt))
	return appt, tr, nil
}

// Delete is the administrative hard delete. The appointment's transfer
// history is removed with it.
func (m *Manager) Delete(ctx context.Context, tenantID, id, actor string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: appointment id is required", model.ErrInvalidInput)
	}
	var appt model.Appointment
	err := m.store.WithTenantLock(ctx, tenantID, func(tx storage.Tx) error {
		var err error
		if appt, err = tx.GetAppointment(ctx, tenantID, id); err != nil {
			return err
		}
		return tx.DeleteAppointment(ctx, tenantID, id)
	})
	if err != nil {
		return err
	}
	m.metrics.Deletion()
	m.logger.WarnContext(ctx, "appointment deleted", "tenant_id", tenantID, "appointment_id", id, "actor", actor)
	m.dispatcher.Dispatch(ctx, notify.Deleted(appt, actor, m.clock.Now().UTC()))
	return nil
}

// ListTransfers returns transfer history oldest first, for one appointment
// or for every move into or out of one staff member.
func (m *Manager) ListTransfers(ctx context.Context, tenantID string, f storage.TransferFilter) ([]model.StaffTransfer, error) {
	f.AppointmentID = strings.TrimSpace(f.AppointmentID)
	f.StaffID = strings.TrimSpace(f.StaffID)
	if (f.AppointmentID == "") == (f.StaffID == "") {
		return nil, fmt.Errorf("%w: exactly one of appointment_id or staff_id is required", model.ErrInvalidInput)
	}
	trs, err := m.store.ListTransfers(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	if trs == nil {
		trs = []model.StaffTransfer{}
	}
	return trs, nil
}
