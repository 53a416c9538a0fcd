package outbox

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/notify"
)

// Dispatcher is the notify.Dispatcher for Postgres mode: each event is
// written to the outbox in its own transaction after the primary write has
// committed, and the Publisher relays it. Failures are logged only.
type Dispatcher struct {
	pool   *db.Pool
	repo   *Repository
	logger *slog.Logger
}

var _ notify.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(pool *db.Pool, repo *Repository, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{pool: pool, repo: repo, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, evt notify.Event) {
	payload, err := evt.Encode()
	if err != nil {
		d.logger.Error("encode event failed", "err", err, "event_type", evt.Type)
		return
	}
	// The caller's request may finish before the insert does.
	ctx = context.WithoutCancel(ctx)
	err = d.pool.InTx(ctx, func(tx pgx.Tx) error {
		return d.repo.Insert(ctx, tx, Event{
			AggregateType: notify.AggregateTypeAppointment,
			AggregateID:   evt.AppointmentID,
			EventType:     evt.Type,
			Payload:       payload,
		})
	})
	if err != nil {
		d.logger.Error("outbox insert failed", "err", err, "event_type", evt.Type, "appointment_id", evt.AppointmentID)
	}
}
