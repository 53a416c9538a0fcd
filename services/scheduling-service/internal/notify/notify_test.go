package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/shopspring/decimal"
)

func TestStatusChangedEncode(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	appt := model.Appointment{
		ID:         "a1",
		TenantID:   "t1",
		Date:       model.Date{Year: 2026, Month: 3, Day: 2},
		StartTime:  540,
		EndTime:    570,
		Status:     model.StatusConfirmed,
		TotalPrice: decimal.RequireFromString("40"),
	}
	raw, err := StatusChanged(model.StatusScheduled, appt, "u1", at).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var doc struct {
		EventType     string `json:"event_type"`
		AppointmentID string `json:"appointment_id"`
		Data          struct {
			OldStatus   string `json:"old_status"`
			NewStatus   string `json:"new_status"`
			Appointment struct {
				Date      string `json:"date"`
				StartTime string `json:"start_time"`
			} `json:"appointment"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.EventType != EventStatusChanged || doc.AppointmentID != "a1" {
		t.Fatalf("unexpected envelope %+v", doc)
	}
	if doc.Data.OldStatus != "SCHEDULED" || doc.Data.NewStatus != "CONFIRMED" {
		t.Fatalf("unexpected statuses %+v", doc.Data)
	}
	if doc.Data.Appointment.Date != "2026-03-02" || doc.Data.Appointment.StartTime != "09:00" {
		t.Fatalf("snapshot not rendered in civil form: %+v", doc.Data.Appointment)
	}
}

type dispatchFunc func(context.Context, Event)

func (f dispatchFunc) Dispatch(ctx context.Context, evt Event) { f(ctx, evt) }

func TestEventLeadRecorder(t *testing.T) {
	var got []Event
	capture := dispatchFunc(func(_ context.Context, evt Event) { got = append(got, evt) })
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	lr := NewEventLeadRecorder(capture, func() time.Time { return fixed })
	lr.RecordConversion(context.Background(), model.Appointment{ID: "a1", TenantID: "t1", Source: model.SourcePublic})

	if len(got) != 1 {
		t.Fatalf("expected one conversion, got %d", len(got))
	}
	conv, ok := got[0].Payload.(Conversion)
	if !ok || conv.AppointmentID != "a1" || !got[0].OccurredAt.Equal(fixed) {
		t.Fatalf("unexpected conversion %+v", got[0])
	}
}
