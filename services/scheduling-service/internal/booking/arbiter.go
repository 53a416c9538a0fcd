package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/payment"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scheduling-service/booking")

// Request is a slot selection to be turned into an appointment.
type Request struct {
	TenantID  string
	ServiceID string
	Date      model.Date
	StartTime model.ClockTime
	Customer  model.Customer
	// StaffID is optional; empty books the slot unassigned.
	StaffID string
	// PaymentReference is an optional prior authorization.
	PaymentReference string
	Source           model.Source
}

func (r *Request) normalize() error {
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.StaffID = strings.TrimSpace(r.StaffID)
	r.Customer.Name = strings.TrimSpace(r.Customer.Name)
	r.Customer.Email = strings.TrimSpace(r.Customer.Email)
	r.Customer.Phone = strings.TrimSpace(r.Customer.Phone)
	r.PaymentReference = strings.TrimSpace(r.PaymentReference)

	switch {
	case r.TenantID == "" || r.ServiceID == "":
		return fmt.Errorf("%w: tenant and service are required", model.ErrInvalidInput)
	case r.Date.IsZero():
		return fmt.Errorf("%w: date is required", model.ErrInvalidInput)
	case r.StartTime < 0 || r.StartTime >= model.EndOfDay:
		return fmt.Errorf("%w: start time out of range", model.ErrInvalidInput)
	case r.Customer.Name == "":
		return fmt.Errorf("%w: customer name is required", model.ErrInvalidInput)
	case r.Source != model.SourcePublic && r.Source != model.SourceAdmin:
		return fmt.Errorf("%w: unknown booking source %q", model.ErrInvalidInput, r.Source)
	}
	return nil
}

type Config struct {
	// PublicRequiresApproval makes public bookings start PENDING.
	PublicRequiresApproval bool
}

// Arbiter converts slot selections into appointments. The free-slot check
// and the insert run inside one per-tenant unit of work, so two requests for
// the same tenant slot cannot both succeed.
type Arbiter struct {
	store      storage.Store
	payments   payment.Authorizer
	dispatcher notify.Dispatcher
	leads      notify.LeadRecorder
	metrics    *metrics.Metrics
	clock      clock.Clock
	logger     *slog.Logger
	cfg        Config
}

type Deps struct {
	Store      storage.Store
	Payments   payment.Authorizer
	Dispatcher notify.Dispatcher
	Leads      notify.LeadRecorder
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	Logger     *slog.Logger
}

func NewArbiter(d Deps, cfg Config) *Arbiter {
	if d.Payments == nil {
		d.Payments = payment.Opaque{}
	}
	if d.Clock == nil {
		d.Clock = clock.WallClock
	}
	if d.Dispatcher == nil {
		d.Dispatcher = notify.NewLogDispatcher(d.Logger)
	}
	return &Arbiter{
		store:      d.Store,
		payments:   d.Payments,
		dispatcher: d.Dispatcher,
		leads:      d.Leads,
		metrics:    d.Metrics,
		clock:      d.Clock,
		logger:     d.Logger,
		cfg:        cfg,
	}
}

func (a *Arbiter) Book(ctx context.Context, req Request) (model.Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.book")
	defer span.End()

	if err := req.normalize(); err != nil {
		a.metrics.Booking(string(req.Source), "rejected")
		return model.Appointment{}, err
	}
	span.SetAttributes(
		attribute.String("tenant.id", req.TenantID),
		attribute.String("booking.date", req.Date.String()),
		attribute.String("booking.start", req.StartTime.String()),
		attribute.String("booking.source", string(req.Source)),
	)

	// Payment lookups can be slow; resolve them before taking the tenant lock,
	// and only for a bookable service. The lock re-checks the service.
	auth := model.PaymentAuthorization{Status: model.PaymentUnpaid}
	method := model.PaymentCash
	if req.PaymentReference != "" {
		if _, err := a.resolveService(ctx, a.store, req); err != nil {
			return model.Appointment{}, a.fail(span, req, err)
		}
		var err error
		if auth, err = a.payments.Authorize(ctx, req.PaymentReference); err != nil {
			return model.Appointment{}, a.fail(span, req, err)
		}
		method = model.PaymentCard
	}

	var appt model.Appointment
	err := a.store.WithTenantLock(ctx, req.TenantID, func(tx storage.Tx) error {
		svc, err := a.resolveService(ctx, tx, req)
		if err != nil {
			return err
		}
		end := req.StartTime.Add(svc.DurationMinutes)
		if end > model.EndOfDay {
			return fmt.Errorf("%w: %s service starting %s runs past midnight", model.ErrInvalidInput, svc.Name, req.StartTime)
		}
		if req.StaffID != "" {
			staff, err := tx.GetStaff(ctx, req.TenantID, req.StaffID)
			if err != nil {
				return err
			}
			if !staff.IsActive {
				return fmt.Errorf("%w: staff %s is inactive", model.ErrInvalidInput, staff.ID)
			}
		}

		templates, err := tx.ListActiveTemplates(ctx, req.TenantID, req.Date.Weekday())
		if err != nil {
			return err
		}
		if !availability.Offered(templates, req.StartTime) {
			return fmt.Errorf("%w: %s is not an offered slot on %s", model.ErrInvalidInput, req.StartTime, req.Date)
		}
		booked, err := tx.ListActiveAppointments(ctx, req.TenantID, req.Date)
		if err != nil {
			return err
		}
		free := availability.FreeSlots(templates, availability.BookedStarts(booked))
		if !availability.Contains(free, req.StartTime) {
			return fmt.Errorf("%w: %s %s", model.ErrBookingConflict, req.Date, req.StartTime)
		}

		now := a.clock.Now().UTC()
		appt = model.Appointment{
			ID:               uuid.NewString(),
			TenantID:         req.TenantID,
			Customer:         req.Customer,
			ServiceID:        svc.ID,
			AssignedStaffID:  req.StaffID,
			Date:             req.Date,
			StartTime:        req.StartTime,
			EndTime:          end,
			Status:           model.InitialStatus(req.Source, a.cfg.PublicRequiresApproval),
			Source:           req.Source,
			TotalPrice:       svc.Price.Round(2),
			PaymentStatus:    auth.Status,
			PaymentMethod:    method,
			PaymentReference: auth.Reference,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return tx.InsertAppointment(ctx, appt)
	})
	if err != nil {
		return model.Appointment{}, a.fail(span, req, err)
	}

	a.metrics.Booking(string(req.Source), "created")
	span.SetAttributes(attribute.String("appointment.id", appt.ID))
	a.logger.InfoContext(ctx, "appointment booked",
		"tenant_id", appt.TenantID,
		"appointment_id", appt.ID,
		"date", appt.Date.String(),
		"start", appt.StartTime.String(),
		"status", string(appt.Status),
	)

	a.dispatcher.Dispatch(ctx, notify.Created(appt, appt.CreatedAt))
	if appt.Source == model.SourcePublic && a.leads != nil {
		a.leads.RecordConversion(ctx, appt)
	}
	return appt, nil
}

// resolveService loads the service for the booking. Public callers never
// learn whether a tenant exists: an unknown tenant reads as an unknown service.
func (a *Arbiter) resolveService(ctx context.Context, tx storage.Reader, req Request) (model.Service, error) {
	ok, err := tx.TenantExists(ctx, req.TenantID)
	if err != nil {
		return model.Service{}, err
	}
	if !ok {
		if req.Source == model.SourcePublic {
			return model.Service{}, fmt.Errorf("%w: %s", model.ErrServiceNotFound, req.ServiceID)
		}
		return model.Service{}, fmt.Errorf("%w: %s", model.ErrUnknownTenant, req.TenantID)
	}
	svc, err := tx.GetService(ctx, req.TenantID, req.ServiceID)
	if err != nil {
		return model.Service{}, err
	}
	if !svc.IsActive {
		return model.Service{}, fmt.Errorf("%w: %s is inactive", model.ErrServiceNotFound, svc.ID)
	}
	if svc.DurationMinutes <= 0 {
		return model.Service{}, fmt.Errorf("%w: service %s has no duration", model.ErrInvalidInput, svc.ID)
	}
	if svc.Price.IsNegative() {
		svc.Price = decimal.Zero
	}
	return svc, nil
}

func (a *Arbiter) fail(span trace.Span, req Request, err error) error {
	outcome := "rejected"
	if errors.Is(err, model.ErrBookingConflict) {
		outcome = "conflict"
	}
	a.metrics.Booking(string(req.Source), outcome)
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	return err
}
