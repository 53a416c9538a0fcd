package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/notify/notifytest"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var monday = model.Date{Year: 2026, Month: 3, Day: 2}

type fixture struct {
	store   *storage.Memory
	events  *notifytest.Recorder
	arbiter *Arbiter
	engine  *availability.Engine
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemory()
	must(t, store.UpsertTenant(ctx, model.Tenant{ID: "T1", Name: "Salon"}))
	must(t, store.UpsertService(ctx, model.Service{ID: "cut", TenantID: "T1", Name: "Cut", DurationMinutes: 30, Price: decimal.RequireFromString("40"), IsActive: true}))
	must(t, store.UpsertService(ctx, model.Service{ID: "old", TenantID: "T1", Name: "Old", DurationMinutes: 30, IsActive: false}))
	must(t, store.UpsertStaff(ctx, model.Staff{ID: "s1", TenantID: "T1", IsActive: true}))
	must(t, store.UpsertStaff(ctx, model.Staff{ID: "s2", TenantID: "T1", IsActive: false}))
	must(t, store.CreateTemplate(ctx, model.AvailabilityTemplate{ID: "tpl-1", TenantID: "T1", Weekday: time.Monday, OpenTime: 480, CloseTime: 600, SlotDurationMinutes: 60, Active: true}))

	events := &notifytest.Recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	arb := NewArbiter(Deps{
		Store:      store,
		Dispatcher: events,
		Leads:      notify.NewEventLeadRecorder(events, nil),
		Metrics:    metrics.New(),
		Clock:      testclock.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Logger:     logger,
	}, cfg)
	return &fixture{store: store, events: events, arbiter: arb, engine: availability.NewEngine(store, store)}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func req(start model.ClockTime, src model.Source) Request {
	return Request{
		TenantID:  "T1",
		ServiceID: "cut",
		Date:      monday,
		StartTime: start,
		Customer:  model.Customer{Name: "Ada", Email: "ada@example.com"},
		Source:    src,
	}
}

func TestBookRemovesSlot(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	appt, err := f.arbiter.Book(ctx, req(480, model.SourceAdmin))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.EndTime != 510 || appt.Status != model.StatusScheduled {
		t.Fatalf("unexpected appointment %+v", appt)
	}
	if appt.PaymentStatus != model.PaymentUnpaid || appt.PaymentMethod != model.PaymentCash || !appt.TotalPrice.Equal(decimal.RequireFromString("40")) {
		t.Fatalf("unexpected payment defaults %+v", appt)
	}

	slots, err := f.engine.Slots(ctx, "T1", monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 1 || slots[0].String() != "09:00" {
		t.Fatalf("expected [09:00], got %v", slots)
	}
	if len(f.events.OfType(notify.EventAppointmentCreated)) != 1 {
		t.Fatal("expected a created event")
	}
	if len(f.events.OfType(notify.EventLeadConversion)) != 0 {
		t.Fatal("admin bookings do not record conversions")
	}
}

func TestBookSecondRequestConflicts(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	if _, err := f.arbiter.Book(ctx, req(540, model.SourceAdmin)); err != nil {
		t.Fatal(err)
	}
	_, err := f.arbiter.Book(ctx, req(540, model.SourcePublic))
	if !errors.Is(err, model.ErrBookingConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestBookConcurrentSameSlot(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.arbiter.Book(ctx, req(480, model.SourcePublic))
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrBookingConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Fatalf("expected exactly one winner, got ok=%d conflicts=%d", ok, conflicts)
	}
	active, _ := f.store.ListActiveAppointments(ctx, "T1", monday)
	if len(active) != 1 {
		t.Fatalf("ledger should hold one appointment, got %d", len(active))
	}
}

func TestBookDifferentTenantsIndependent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	must(t, f.store.UpsertTenant(ctx, model.Tenant{ID: "T2"}))
	must(t, f.store.UpsertService(ctx, model.Service{ID: "cut", TenantID: "T2", DurationMinutes: 30, IsActive: true}))
	must(t, f.store.CreateTemplate(ctx, model.AvailabilityTemplate{ID: "tpl-2", TenantID: "T2", Weekday: time.Monday, OpenTime: 480, CloseTime: 600, SlotDurationMinutes: 60, Active: true}))

	if _, err := f.arbiter.Book(ctx, req(480, model.SourceAdmin)); err != nil {
		t.Fatal(err)
	}
	r := req(480, model.SourceAdmin)
	r.TenantID = "T2"
	if _, err := f.arbiter.Book(ctx, r); err != nil {
		t.Fatalf("same slot in another tenant should book: %v", err)
	}
}

func TestBookPublicInitialStatus(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, Config{PublicRequiresApproval: true})
	appt, err := f.arbiter.Book(ctx, req(480, model.SourcePublic))
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != model.StatusPending {
		t.Fatalf("expected PENDING, got %s", appt.Status)
	}
	if len(f.events.OfType(notify.EventLeadConversion)) != 1 {
		t.Fatal("public booking should record a conversion")
	}

	f = newFixture(t, Config{PublicRequiresApproval: false})
	appt, err = f.arbiter.Book(ctx, req(480, model.SourcePublic))
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != model.StatusScheduled {
		t.Fatalf("expected SCHEDULED, got %s", appt.Status)
	}
}

func TestBookServiceErrors(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	r := req(480, model.SourceAdmin)
	r.ServiceID = "missing"
	if _, err := f.arbiter.Book(ctx, r); !errors.Is(err, model.ErrServiceNotFound) {
		t.Fatalf("expected service not found, got %v", err)
	}
	r.ServiceID = "old"
	if _, err := f.arbiter.Book(ctx, r); !errors.Is(err, model.ErrServiceNotFound) {
		t.Fatalf("inactive service should not be bookable, got %v", err)
	}
}

func TestBookUnknownTenant(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	r := req(480, model.SourceAdmin)
	r.TenantID = "nope"
	if _, err := f.arbiter.Book(ctx, r); !errors.Is(err, model.ErrUnknownTenant) {
		t.Fatalf("internal callers see unknown tenant, got %v", err)
	}
	r.Source = model.SourcePublic
	if _, err := f.arbiter.Book(ctx, r); !errors.Is(err, model.ErrServiceNotFound) {
		t.Fatalf("public callers see service not found, got %v", err)
	}
}

func TestBookInvalidInput(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	cases := map[string]func(*Request){
		"off grid":       func(r *Request) { r.StartTime = 490 },
		"closed":         func(r *Request) { r.StartTime = 600 },
		"no customer":    func(r *Request) { r.Customer.Name = " " },
		"no date":        func(r *Request) { r.Date = model.Date{} },
		"bad source":     func(r *Request) { r.Source = "kiosk" },
		"inactive staff": func(r *Request) { r.StaffID = "s2" },
	}
	for name, mutate := range cases {
		r := req(480, model.SourceAdmin)
		mutate(&r)
		if _, err := f.arbiter.Book(ctx, r); !errors.Is(err, model.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}

	r := req(480, model.SourceAdmin)
	r.StaffID = "ghost"
	if _, err := f.arbiter.Book(ctx, r); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown staff: expected not found, got %v", err)
	}
}

func TestBookWithStaffAndPayment(t *testing.T) {
	f := newFixture(t, Config{})
	r := req(540, model.SourcePublic)
	r.StaffID = "s1"
	r.PaymentReference = "pi_123"
	appt, err := f.arbiter.Book(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if appt.AssignedStaffID != "s1" {
		t.Fatalf("expected staff s1, got %q", appt.AssignedStaffID)
	}
	if appt.PaymentMethod != model.PaymentCard || appt.PaymentStatus != model.PaymentAuthorized || appt.PaymentReference != "pi_123" {
		t.Fatalf("unexpected payment fields %+v", appt)
	}
}

type countingAuthorizer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingAuthorizer) Authorize(_ context.Context, reference string) (model.PaymentAuthorization, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return model.PaymentAuthorization{Reference: reference, Status: model.PaymentAuthorized}, nil
}

func TestBookSkipsPaymentLookupForUnbookableService(t *testing.T) {
	f := newFixture(t, Config{})
	auth := &countingAuthorizer{}
	arb := NewArbiter(Deps{
		Store:    f.store,
		Payments: auth,
		Metrics:  metrics.New(),
		Clock:    testclock.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Config{})
	ctx := context.Background()

	r := req(480, model.SourcePublic)
	r.TenantID = "ghost"
	r.PaymentReference = "pi_123"
	if _, err := arb.Book(ctx, r); !errors.Is(err, model.ErrServiceNotFound) {
		t.Fatalf("expected service not found, got %v", err)
	}
	r = req(480, model.SourcePublic)
	r.ServiceID = "old"
	r.PaymentReference = "pi_123"
	if _, err := arb.Book(ctx, r); !errors.Is(err, model.ErrServiceNotFound) {
		t.Fatalf("inactive service: expected service not found, got %v", err)
	}
	if auth.calls != 0 {
		t.Fatalf("expected no payment lookups, got %d", auth.calls)
	}

	r = req(480, model.SourcePublic)
	r.PaymentReference = "pi_123"
	if _, err := arb.Book(ctx, r); err != nil {
		t.Fatalf("book: %v", err)
	}
	if auth.calls != 1 {
		t.Fatalf("expected one payment lookup, got %d", auth.calls)
	}
}

func TestBookCancelledContextLeavesNoRecord(t *testing.T) {
	f := newFixture(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.arbiter.Book(ctx, req(480, model.SourceAdmin)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	active, _ := f.store.ListActiveAppointments(context.Background(), "T1", monday)
	if len(active) != 0 {
		t.Fatalf("expected empty ledger, got %d", len(active))
	}
	if len(f.events.Events()) != 0 {
		t.Fatal("no events for a failed booking")
	}
}

func TestBookCancelledAppointmentReleasesSlot(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	appt, err := f.arbiter.Book(ctx, req(480, model.SourceAdmin))
	if err != nil {
		t.Fatal(err)
	}
	err = f.store.WithTenantLock(ctx, "T1", func(tx storage.Tx) error {
		appt.Status = model.StatusCancelled
		return tx.UpdateAppointment(ctx, appt)
	})
	must(t, err)
	if _, err := f.arbiter.Book(ctx, req(480, model.SourceAdmin)); err != nil {
		t.Fatalf("cancelled slot should be bookable again: %v", err)
	}
}
