package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

// Reader is the read surface shared by the store and by units of work.
// Lookups are always tenant scoped; a row owned by another tenant is a miss.
type Reader interface {
	TenantExists(ctx context.Context, tenantID string) (bool, error)
	// GetService returns model.ErrServiceNotFound on a miss.
	GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error)
	// GetStaff returns model.ErrNotFound on a miss.
	GetStaff(ctx context.Context, tenantID, staffID string) (model.Staff, error)
	ListActiveTemplates(ctx context.Context, tenantID string, weekday time.Weekday) ([]model.AvailabilityTemplate, error)
	ListActiveAppointments(ctx context.Context, tenantID string, date model.Date) ([]model.Appointment, error)
	// GetAppointment returns model.ErrNotFound on a miss.
	GetAppointment(ctx context.Context, tenantID, id string) (model.Appointment, error)
}

// Tx is a unit of work opened by Store.WithTenantLock. Writes made through
// it become visible only when the enclosing function returns nil.
type Tx interface {
	Reader
	// InsertAppointment returns model.ErrBookingConflict when another active
	// appointment already holds the same tenant, date and start time.
	InsertAppointment(ctx context.Context, appt model.Appointment) error
	UpdateAppointment(ctx context.Context, appt model.Appointment) error
	// DeleteAppointment removes the appointment and its transfer history.
	DeleteAppointment(ctx context.Context, tenantID, id string) error
	InsertTransfer(ctx context.Context, tr model.StaffTransfer) error
}

type AppointmentFilter struct {
	Date   model.Date
	Status model.Status
	Limit  int
}

// TransferFilter selects transfer history by appointment or by staff member
// (either side of the move). Exactly one field should be set.
type TransferFilter struct {
	AppointmentID string
	StaffID       string
}

type Store interface {
	Reader

	// WithTenantLock runs fn with every other unit of work for tenantID
	// excluded. Work for different tenants never contends.
	WithTenantLock(ctx context.Context, tenantID string, fn func(Tx) error) error

	ListAppointments(ctx context.Context, tenantID string, f AppointmentFilter) ([]model.Appointment, error)
	ListTransfers(ctx context.Context, tenantID string, f TransferFilter) ([]model.StaffTransfer, error)

	ListTemplates(ctx context.Context, tenantID string) ([]model.AvailabilityTemplate, error)
	GetTemplate(ctx context.Context, tenantID, id string) (model.AvailabilityTemplate, error)
	CreateTemplate(ctx context.Context, tpl model.AvailabilityTemplate) error
	UpdateTemplate(ctx context.Context, tpl model.AvailabilityTemplate) error
	DeleteTemplate(ctx context.Context, tenantID, id string) error

	UpsertTenant(ctx context.Context, t model.Tenant) error
	UpsertService(ctx context.Context, s model.Service) error
	UpsertStaff(ctx context.Context, s model.Staff) error

	Ping(ctx context.Context) error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ClampLimit normalises a caller supplied page size.
func ClampLimit(n int) int {
	if n <= 0 || n > MaxListLimit {
		return DefaultListLimit
	}
	return n
}
