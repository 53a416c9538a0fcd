package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

// TemplateSource yields the active templates for a tenant's weekday.
// The cached source and the store both satisfy it.
type TemplateSource interface {
	ListActiveTemplates(ctx context.Context, tenantID string, weekday time.Weekday) ([]model.AvailabilityTemplate, error)
}

// Ledger is the read side of the appointment ledger the engine needs.
type Ledger interface {
	TenantExists(ctx context.Context, tenantID string) (bool, error)
	ListActiveAppointments(ctx context.Context, tenantID string, date model.Date) ([]model.Appointment, error)
}

type Engine struct {
	templates TemplateSource
	ledger    Ledger
}

func NewEngine(templates TemplateSource, ledger Ledger) *Engine {
	return &Engine{templates: templates, ledger: ledger}
}

// Slots computes the free start times for tenantID on date.
// An unknown tenant yields ErrUnknownTenant; use PublicSlots for callers
// that must not learn whether a tenant exists.
func (e *Engine) Slots(ctx context.Context, tenantID string, date model.Date) ([]model.ClockTime, error) {
	if tenantID == "" || date.IsZero() {
		return nil, fmt.Errorf("%w: tenant and date are required", model.ErrInvalidInput)
	}
	ok, err := e.ledger.TenantExists(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownTenant, tenantID)
	}
	return e.compute(ctx, tenantID, date)
}

// PublicSlots is Slots with unknown tenants reported as an empty result.
func (e *Engine) PublicSlots(ctx context.Context, tenantID string, date model.Date) ([]model.ClockTime, error) {
	if tenantID == "" || date.IsZero() {
		return nil, fmt.Errorf("%w: tenant and date are required", model.ErrInvalidInput)
	}
	ok, err := e.ledger.TenantExists(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.ClockTime{}, nil
	}
	return e.compute(ctx, tenantID, date)
}

func (e *Engine) compute(ctx context.Context, tenantID string, date model.Date) ([]model.ClockTime, error) {
	templates, err := e.templates.ListActiveTemplates(ctx, tenantID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	if len(templates) == 0 {
		return []model.ClockTime{}, nil
	}
	appts, err := e.ledger.ListActiveAppointments(ctx, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	slots := FreeSlots(templates, BookedStarts(appts))
	if slots == nil {
		slots = []model.ClockTime{}
	}
	return slots, nil
}
