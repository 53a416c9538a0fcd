package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/inbox"
	"github.com/segmentio/kafka-go"
)

type scriptedReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
	closed bool
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

func msg(id string) kafka.Message {
	return kafka.Message{
		Topic:   "business.staff.upserted.v1",
		Headers: kafkax.EventMeta{EventID: id, EventType: "business.staff.upserted.v1"}.Headers(),
	}
}

func TestRunDeduplicatesByEventID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &scriptedReader{msgs: []kafka.Message{msg("e1"), msg("e1"), msg("e2"), msg("e3")}, cancel: cancel}

	var handled []string
	c := &Consumer{
		reader: reader,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:  inbox.NewMemory(),
		handler: func(_ context.Context, m kafka.Message) error {
			id := kafkax.ExtractEventMeta(m).EventID
			handled = append(handled, id)
			if id == "e2" {
				return errors.New("bad payload")
			}
			return nil
		},
	}
	c.Run(ctx)

	if len(handled) != 3 || handled[0] != "e1" || handled[1] != "e2" || handled[2] != "e3" {
		t.Fatalf("unexpected handled sequence %v", handled)
	}
	if !reader.closed {
		t.Fatal("reader should be closed when Run returns")
	}
}

func TestRunRetriesRedeliveryAfterHandlerFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &scriptedReader{msgs: []kafka.Message{msg("e1"), msg("e2"), msg("e2"), msg("e2")}, cancel: cancel}

	calls := map[string]int{}
	c := &Consumer{
		reader: reader,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:  inbox.NewMemory(),
		handler: func(_ context.Context, m kafka.Message) error {
			id := kafkax.ExtractEventMeta(m).EventID
			calls[id]++
			if id == "e2" && calls[id] == 1 {
				return errors.New("upsert failed")
			}
			return nil
		},
	}
	c.Run(ctx)

	// First e2 fails and is released, second succeeds, third is a duplicate.
	if calls["e1"] != 1 || calls["e2"] != 2 {
		t.Fatalf("unexpected handler calls %v", calls)
	}
}

func TestRunAppliesEveryMessageWithoutEventID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	upsert := func(price string) kafka.Message {
		return kafka.Message{
			Topic: "business.service.upserted.v1",
			Key:   []byte("biz-1"),
			Value: []byte(`{"price":"` + price + `"}`),
		}
	}
	reader := &scriptedReader{msgs: []kafka.Message{upsert("10"), upsert("20")}, cancel: cancel}

	var applied []string
	c := &Consumer{
		reader: reader,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:  inbox.NewMemory(),
		handler: func(_ context.Context, m kafka.Message) error {
			applied = append(applied, string(m.Value))
			return nil
		},
	}
	c.Run(ctx)

	if len(applied) != 2 || applied[1] != `{"price":"20"}` {
		t.Fatalf("later upsert for the same key was dropped: %v", applied)
	}
}
