package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

type scopedKey struct {
	tenantID string
	id       string
}

// Memory is the process-local Store. Data lives in maps behind an RWMutex;
// units of work are serialised per tenant by a keyed mutex and stage their
// writes until the work function succeeds.
type Memory struct {
	locks *kmutex.Kmutex

	mu        sync.RWMutex
	tenants   map[string]model.Tenant
	services  map[scopedKey]model.Service
	staff     map[scopedKey]model.Staff
	templates map[string]model.AvailabilityTemplate
	appts     map[string]model.Appointment
	transfers []model.StaffTransfer
}

func NewMemory() *Memory {
	return &Memory{
		locks:     kmutex.New(),
		tenants:   make(map[string]model.Tenant),
		services:  make(map[scopedKey]model.Service),
		staff:     make(map[scopedKey]model.Staff),
		templates: make(map[string]model.AvailabilityTemplate),
		appts:     make(map[string]model.Appointment),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) TenantExists(_ context.Context, tenantID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tenants[tenantID]
	return ok, nil
}

func (m *Memory) GetService(_ context.Context, tenantID, serviceID string) (model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[scopedKey{tenantID, serviceID}]
	if !ok {
		return model.Service{}, fmt.Errorf("%w: %s", model.ErrServiceNotFound, serviceID)
	}
	return svc, nil
}

func (m *Memory) GetStaff(_ context.Context, tenantID, staffID string) (model.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.staff[scopedKey{tenantID, staffID}]
	if !ok {
		return model.Staff{}, fmt.Errorf("%w: staff %s", model.ErrNotFound, staffID)
	}
	return st, nil
}

func (m *Memory) ListActiveTemplates(_ context.Context, tenantID string, weekday time.Weekday) ([]model.AvailabilityTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.AvailabilityTemplate
	for _, tpl := range m.templates {
		if tpl.TenantID == tenantID && tpl.Weekday == weekday && tpl.Active {
			out = append(out, tpl)
		}
	}
	sortTemplates(out)
	return out, nil
}

func (m *Memory) ListActiveAppointments(_ context.Context, tenantID string, date model.Date) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeAppointmentsLocked(tenantID, date), nil
}

func (m *Memory) activeAppointmentsLocked(tenantID string, date model.Date) []model.Appointment {
	var out []model.Appointment
	for _, a := range m.appts {
		if a.TenantID == tenantID && a.Date == date && a.Status.IsActive() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (m *Memory) GetAppointment(_ context.Context, tenantID, id string) (model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appts[id]
	if !ok || a.TenantID != tenantID {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	return a, nil
}

func (m *Memory) ListAppointments(_ context.Context, tenantID string, f AppointmentFilter) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if a.TenantID != tenantID {
			continue
		}
		if !f.Date.IsZero() && a.Date != f.Date {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Time().After(out[j].Date.Time())
		}
		return out[i].StartTime > out[j].StartTime
	})
	if limit := ClampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListTransfers(_ context.Context, tenantID string, f TransferFilter) ([]model.StaffTransfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.StaffTransfer
	for _, tr := range m.transfers {
		if tr.TenantID != tenantID {
			continue
		}
		if f.AppointmentID != "" && tr.AppointmentID != f.AppointmentID {
			continue
		}
		if f.StaffID != "" && tr.FromStaffID != f.StaffID && tr.ToStaffID != f.StaffID {
			continue
		}
		out = append(out, tr)
	}
	return out, nil
}

func (m *Memory) ListTemplates(_ context.Context, tenantID string) ([]model.AvailabilityTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.AvailabilityTemplate
	for _, tpl := range m.templates {
		if tpl.TenantID == tenantID {
			out = append(out, tpl)
		}
	}
	sortTemplates(out)
	return out, nil
}

func (m *Memory) GetTemplate(_ context.Context, tenantID, id string) (model.AvailabilityTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[id]
	if !ok || tpl.TenantID != tenantID {
		return model.AvailabilityTemplate{}, fmt.Errorf("%w: template %s", model.ErrNotFound, id)
	}
	return tpl, nil
}

func (m *Memory) CreateTemplate(_ context.Context, tpl model.AvailabilityTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[tpl.ID]; ok {
		return fmt.Errorf("%w: template %s already exists", model.ErrInvalidInput, tpl.ID)
	}
	m.templates[tpl.ID] = tpl
	return nil
}

func (m *Memory) UpdateTemplate(_ context.Context, tpl model.AvailabilityTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.templates[tpl.ID]
	if !ok || cur.TenantID != tpl.TenantID {
		return fmt.Errorf("%w: template %s", model.ErrNotFound, tpl.ID)
	}
	tpl.CreatedAt = cur.CreatedAt
	m.templates[tpl.ID] = tpl
	return nil
}

func (m *Memory) DeleteTemplate(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.templates[id]
	if !ok || cur.TenantID != tenantID {
		return fmt.Errorf("%w: template %s", model.ErrNotFound, id)
	}
	delete(m.templates, id)
	return nil
}

func (m *Memory) UpsertTenant(_ context.Context, t model.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	return nil
}

func (m *Memory) UpsertService(_ context.Context, s model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[scopedKey{s.TenantID, s.ID}] = s
	return nil
}

func (m *Memory) UpsertStaff(_ context.Context, s model.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff[scopedKey{s.TenantID, s.ID}] = s
	return nil
}

func (m *Memory) WithTenantLock(ctx context.Context, tenantID string, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.locks.Lock(tenantID)
	defer m.locks.Unlock(tenantID)

	tx := &memTx{Memory: m, tenantID: tenantID}
	if err := fn(tx); err != nil {
		return err
	}
	// A unit of work that outlived its caller leaves nothing behind.
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range tx.ops {
		op()
	}
	return nil
}

// memTx reads committed state and stages writes as closures applied by
// WithTenantLock under the write lock.
type memTx struct {
	*Memory
	tenantID string
	ops      []func()

	// staged appointment state, so a unit of work sees its own writes
	staged  map[string]model.Appointment
	deleted map[string]bool
}

func (tx *memTx) GetAppointment(ctx context.Context, tenantID, id string) (model.Appointment, error) {
	if tx.deleted[id] {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	if a, ok := tx.staged[id]; ok && a.TenantID == tenantID {
		return a, nil
	}
	return tx.Memory.GetAppointment(ctx, tenantID, id)
}

func (tx *memTx) ListActiveAppointments(_ context.Context, tenantID string, date model.Date) ([]model.Appointment, error) {
	tx.mu.RLock()
	committed := tx.activeAppointmentsLocked(tenantID, date)
	tx.mu.RUnlock()

	var out []model.Appointment
	for _, a := range committed {
		if _, ok := tx.staged[a.ID]; ok || tx.deleted[a.ID] {
			continue
		}
		out = append(out, a)
	}
	for _, a := range tx.staged {
		if a.TenantID == tenantID && a.Date == date && a.Status.IsActive() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (tx *memTx) stage(a model.Appointment) {
	if tx.staged == nil {
		tx.staged = make(map[string]model.Appointment)
	}
	tx.staged[a.ID] = a
	delete(tx.deleted, a.ID)
}

func (tx *memTx) InsertAppointment(ctx context.Context, appt model.Appointment) error {
	if appt.TenantID != tx.tenantID {
		return fmt.Errorf("%w: appointment tenant does not match lock", model.ErrInvalidInput)
	}
	if _, err := tx.GetAppointment(ctx, appt.TenantID, appt.ID); err == nil {
		return fmt.Errorf("%w: appointment %s already exists", model.ErrInvalidInput, appt.ID)
	}
	active, _ := tx.ListActiveAppointments(ctx, appt.TenantID, appt.Date)
	for _, a := range active {
		if a.StartTime == appt.StartTime {
			return fmt.Errorf("%w: %s %s", model.ErrBookingConflict, appt.Date, appt.StartTime)
		}
	}
	tx.stage(appt)
	tx.ops = append(tx.ops, func() { tx.appts[appt.ID] = appt })
	return nil
}

func (tx *memTx) UpdateAppointment(ctx context.Context, appt model.Appointment) error {
	if _, err := tx.GetAppointment(ctx, tx.tenantID, appt.ID); err != nil {
		return err
	}
	tx.stage(appt)
	tx.ops = append(tx.ops, func() { tx.appts[appt.ID] = appt })
	return nil
}

func (tx *memTx) DeleteAppointment(ctx context.Context, tenantID, id string) error {
	if _, err := tx.GetAppointment(ctx, tenantID, id); err != nil {
		return err
	}
	delete(tx.staged, id)
	if tx.deleted == nil {
		tx.deleted = make(map[string]bool)
	}
	tx.deleted[id] = true
	tx.ops = append(tx.ops, func() {
		delete(tx.appts, id)
		kept := tx.transfers[:0]
		for _, tr := range tx.transfers {
			if tr.AppointmentID != id {
				kept = append(kept, tr)
			}
		}
		tx.transfers = kept
	})
	return nil
}

func (tx *memTx) InsertTransfer(ctx context.Context, tr model.StaffTransfer) error {
	if _, err := tx.GetAppointment(ctx, tr.TenantID, tr.AppointmentID); err != nil {
		return err
	}
	tx.ops = append(tx.ops, func() { tx.transfers = append(tx.transfers, tr) })
	return nil
}

func sortTemplates(tpls []model.AvailabilityTemplate) {
	sort.Slice(tpls, func(i, j int) bool {
		if tpls[i].Weekday != tpls[j].Weekday {
			return tpls[i].Weekday < tpls[j].Weekday
		}
		if tpls[i].OpenTime != tpls[j].OpenTime {
			return tpls[i].OpenTime < tpls[j].OpenTime
		}
		return tpls[i].ID < tpls[j].ID
	})
}
