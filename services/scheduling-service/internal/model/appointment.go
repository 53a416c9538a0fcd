package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AvailabilityTemplate struct {
	ID                  string       `json:"id"`
	TenantID            string       `json:"tenant_id"`
	Weekday             time.Weekday `json:"weekday"`
	OpenTime            ClockTime    `json:"open_time"`
	CloseTime           ClockTime    `json:"close_time"`
	SlotDurationMinutes int          `json:"slot_duration_minutes"`
	Active              bool         `json:"active"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (t AvailabilityTemplate) Validate() error {
	switch {
	case strings.TrimSpace(t.TenantID) == "":
		return invalidf("tenant_id is required")
	case t.Weekday < time.Sunday || t.Weekday > time.Saturday:
		return invalidf("weekday must be between 0 and 6")
	case t.OpenTime < 0 || t.CloseTime > EndOfDay:
		return invalidf("open/close time out of range")
	case t.OpenTime >= t.CloseTime:
		return invalidf("open_time must be before close_time")
	case t.SlotDurationMinutes <= 0:
		return invalidf("slot_duration_minutes must be positive")
	}
	return nil
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PaymentAuthorization is produced by the payment collaborator and stored as-is.
type PaymentAuthorization struct {
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
}

type Appointment struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	Customer         Customer        `json:"customer"`
	ServiceID        string          `json:"service_id"`
	AssignedStaffID  string          `json:"assigned_staff_id,omitempty"`
	Date             Date            `json:"date"`
	StartTime        ClockTime       `json:"start_time"`
	EndTime          ClockTime       `json:"end_time"`
	Status           Status          `json:"status"`
	Source           Source          `json:"source"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// StaffTransfer is an append-only audit row written with every reassignment.
type StaffTransfer struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	TenantID      string    `json:"tenant_id"`
	FromStaffID   string    `json:"from_staff_id,omitempty"`
	ToStaffID     string    `json:"to_staff_id"`
	TransferredBy string    `json:"transferred_by"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Service struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	IsActive        bool            `json:"is_active"`
}

type Staff struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}
