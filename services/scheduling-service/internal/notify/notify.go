package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

const (
	EventAppointmentCreated  = "booking.appointment.created.v1"
	EventStatusChanged       = "booking.appointment.status_changed.v1"
	EventStaffTransferred    = "booking.appointment.staff_transferred.v1"
	EventAppointmentDeleted  = "booking.appointment.deleted.v1"
	EventLeadConversion      = "booking.lead.conversion.v1"
	AggregateTypeAppointment = "appointment"
)

// Event is what the notification collaborator receives: the appointment it
// concerns, the event type, and a JSON-serialisable payload.
type Event struct {
	Type          string
	TenantID      string
	AppointmentID string
	OccurredAt    time.Time
	Payload       any
}

type envelope struct {
	EventType     string    `json:"event_type"`
	TenantID      string    `json:"tenant_id"`
	AppointmentID string    `json:"appointment_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Data          any       `json:"data"`
}

// Encode renders the event as the JSON document published downstream.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(envelope{
		EventType:     e.Type,
		TenantID:      e.TenantID,
		AppointmentID: e.AppointmentID,
		OccurredAt:    e.OccurredAt.UTC(),
		Data:          e.Payload,
	})
}

// Dispatcher delivers events fire-and-forget. Implementations log their own
// failures; nothing is reported back to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event)
}

type StatusChange struct {
	OldStatus   model.Status      `json:"old_status"`
	NewStatus   model.Status      `json:"new_status"`
	Actor       string            `json:"actor,omitempty"`
	Appointment model.Appointment `json:"appointment"`
}

type Transfer struct {
	Transfer    model.StaffTransfer `json:"transfer"`
	Appointment model.Appointment   `json:"appointment"`
}

type Deletion struct {
	Actor       string            `json:"actor,omitempty"`
	Appointment model.Appointment `json:"appointment"`
}

func Created(appt model.Appointment, at time.Time) Event {
	return Event{Type: EventAppointmentCreated, TenantID: appt.TenantID, AppointmentID: appt.ID, OccurredAt: at, Payload: appt}
}

func StatusChanged(old model.Status, appt model.Appointment, actor string, at time.Time) Event {
	return Event{
		Type:          EventStatusChanged,
		TenantID:      appt.TenantID,
		AppointmentID: appt.ID,
		OccurredAt:    at,
		Payload:       StatusChange{OldStatus: old, NewStatus: appt.Status, Actor: actor, Appointment: appt},
	}
}

func StaffTransferred(tr model.StaffTransfer, appt model.Appointment) Event {
	return Event{
		Type:          EventStaffTransferred,
		TenantID:      appt.TenantID,
		AppointmentID: appt.ID,
		OccurredAt:    tr.CreatedAt,
		Payload:       Transfer{Transfer: tr, Appointment: appt},
	}
}

func Deleted(appt model.Appointment, actor string, at time.Time) Event {
	return Event{
		Type:          EventAppointmentDeleted,
		TenantID:      appt.TenantID,
		AppointmentID: appt.ID,
		OccurredAt:    at,
		Payload:       Deletion{Actor: actor, Appointment: appt},
	}
}

// LogDispatcher writes events to the structured log. It is the dispatcher
// used when no outbox is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, evt Event) {
	d.logger.InfoContext(ctx, "event dispatched",
		"event_type", evt.Type,
		"tenant_id", evt.TenantID,
		"appointment_id", evt.AppointmentID,
	)
}
