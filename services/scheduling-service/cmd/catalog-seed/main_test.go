package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/catalog"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
)

func TestSeedMessagesRoundTripThroughSync(t *testing.T) {
	msgs, err := buildMessages(seed{
		BusinessID: "T1", BusinessName: "Demo",
		ServiceID: "cut", ServiceName: "Haircut", Duration: 45, Price: "30.50",
		StaffID: "s1", StaffName: "Alex",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		if kafkax.ExtractEventMeta(m).EventID == "" {
			t.Fatalf("%s: missing event id header", m.Topic)
		}
	}

	ctx := context.Background()
	store := storage.NewMemory()
	sync := catalog.NewSync(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, m := range msgs {
		if err := sync.Handle(ctx, m); err != nil {
			t.Fatalf("handle %s: %v", m.Topic, err)
		}
	}
	if ok, _ := store.TenantExists(ctx, "T1"); !ok {
		t.Fatalf("tenant not seeded")
	}
	svc, err := store.GetService(ctx, "T1", "cut")
	if err != nil || svc.DurationMinutes != 45 || svc.Price.String() != "30.5" || !svc.IsActive {
		t.Fatalf("unexpected service %+v err=%v", svc, err)
	}
	if st, err := store.GetStaff(ctx, "T1", "s1"); err != nil || !st.IsActive {
		t.Fatalf("unexpected staff %+v err=%v", st, err)
	}
}

func TestSeedRejectsBadPrice(t *testing.T) {
	if _, err := buildMessages(seed{BusinessID: "T1", ServiceID: "cut", Duration: 30, Price: "abc"}); err == nil {
		t.Fatalf("expected price error")
	}
}
