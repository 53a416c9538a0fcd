package notify

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/shopspring/decimal"
)

// LeadRecorder receives a best-effort conversion record after a public booking.
type LeadRecorder interface {
	RecordConversion(ctx context.Context, appt model.Appointment)
}

type Conversion struct {
	TenantID      string          `json:"tenant_id"`
	AppointmentID string          `json:"appointment_id"`
	ServiceID     string          `json:"service_id"`
	Customer      model.Customer  `json:"customer"`
	Date          model.Date      `json:"date"`
	StartTime     model.ClockTime `json:"start_time"`
	Value         decimal.Decimal `json:"value"`
	Source        model.Source    `json:"source"`
}

// EventLeadRecorder forwards conversions to the CRM as events on the
// dispatcher, so they share its delivery path.
type EventLeadRecorder struct {
	dispatcher Dispatcher
	now        func() time.Time
}

func NewEventLeadRecorder(d Dispatcher, now func() time.Time) *EventLeadRecorder {
	if now == nil {
		now = time.Now
	}
	return &EventLeadRecorder{dispatcher: d, now: now}
}

func (r *EventLeadRecorder) RecordConversion(ctx context.Context, appt model.Appointment) {
	r.dispatcher.Dispatch(ctx, Event{
		Type:          EventLeadConversion,
		TenantID:      appt.TenantID,
		AppointmentID: appt.ID,
		OccurredAt:    r.now(),
		Payload: Conversion{
			TenantID:      appt.TenantID,
			AppointmentID: appt.ID,
			ServiceID:     appt.ServiceID,
			Customer:      appt.Customer,
			Date:          appt.Date,
			StartTime:     appt.StartTime,
			Value:         appt.TotalPrice,
			Source:        appt.Source,
		},
	})
}
