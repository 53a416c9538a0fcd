package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

var monday = model.Date{Year: 2026, Month: 3, Day: 2}

func appt(id, tenant string, start model.ClockTime) model.Appointment {
	return model.Appointment{
		ID:        id,
		TenantID:  tenant,
		ServiceID: "svc",
		Date:      monday,
		StartTime: start,
		EndTime:   start + 30,
		Status:    model.StatusScheduled,
	}
}

func insert(ctx context.Context, m *Memory, a model.Appointment) error {
	return m.WithTenantLock(ctx, a.TenantID, func(tx Tx) error {
		return tx.InsertAppointment(ctx, a)
	})
}

func TestMemoryInsertConflictOnSameStart(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := insert(ctx, m, appt("a1", "t1", 540)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := insert(ctx, m, appt("a2", "t1", 540))
	if !errors.Is(err, model.ErrBookingConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// Same start for another tenant is independent.
	if err := insert(ctx, m, appt("b1", "t2", 540)); err != nil {
		t.Fatalf("other tenant insert: %v", err)
	}
}

func TestMemoryCancelledAppointmentFreesStart(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := appt("a1", "t1", 540)
	a.Status = model.StatusCancelled
	if err := insert(ctx, m, a); err != nil {
		t.Fatalf("insert cancelled: %v", err)
	}
	if err := insert(ctx, m, appt("a2", "t1", 540)); err != nil {
		t.Fatalf("insert over cancelled slot: %v", err)
	}
}

func TestMemoryFailedWorkLeavesNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")
	err := m.WithTenantLock(ctx, "t1", func(tx Tx) error {
		if err := tx.InsertAppointment(ctx, appt("a1", "t1", 540)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := m.GetAppointment(ctx, "t1", "a1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}

func TestMemoryCancelledContextDiscardsWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()
	err := m.WithTenantLock(ctx, "t1", func(tx Tx) error {
		if err := tx.InsertAppointment(ctx, appt("a1", "t1", 540)); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := m.GetAppointment(context.Background(), "t1", "a1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected no appointment, got %v", err)
	}
}

func TestMemoryConcurrentInsertsOneWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- insert(ctx, m, appt(string(rune('a'+i)), "t1", 600))
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrBookingConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", n-1, ok, conflicts)
	}
	active, _ := m.ListActiveAppointments(ctx, "t1", monday)
	if len(active) != 1 {
		t.Fatalf("expected exactly one active appointment, got %d", len(active))
	}
}

func TestMemoryDeleteCascadesTransfers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := insert(ctx, m, appt("a1", "t1", 540)); err != nil {
		t.Fatal(err)
	}
	if err := insert(ctx, m, appt("a2", "t1", 570)); err != nil {
		t.Fatal(err)
	}
	err := m.WithTenantLock(ctx, "t1", func(tx Tx) error {
		if err := tx.InsertTransfer(ctx, model.StaffTransfer{ID: "x1", AppointmentID: "a1", TenantID: "t1", ToStaffID: "s1"}); err != nil {
			return err
		}
		return tx.InsertTransfer(ctx, model.StaffTransfer{ID: "x2", AppointmentID: "a2", TenantID: "t1", ToStaffID: "s1"})
	})
	if err != nil {
		t.Fatalf("transfers: %v", err)
	}

	if err := m.WithTenantLock(ctx, "t1", func(tx Tx) error {
		return tx.DeleteAppointment(ctx, "t1", "a1")
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	trs, _ := m.ListTransfers(ctx, "t1", TransferFilter{StaffID: "s1"})
	if len(trs) != 1 || trs[0].AppointmentID != "a2" {
		t.Fatalf("expected only a2's transfer to remain, got %+v", trs)
	}
}

func TestMemoryTenantScoping(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := insert(ctx, m, appt("a1", "t1", 540)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetAppointment(ctx, "t2", "a1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cross-tenant read should miss, got %v", err)
	}
	_ = m.UpsertService(ctx, model.Service{ID: "svc", TenantID: "t1", DurationMinutes: 30, IsActive: true})
	if _, err := m.GetService(ctx, "t2", "svc"); !errors.Is(err, model.ErrServiceNotFound) {
		t.Fatalf("cross-tenant service should miss, got %v", err)
	}
	_ = m.UpsertStaff(ctx, model.Staff{ID: "s1", TenantID: "t1", IsActive: true})
	if _, err := m.GetStaff(ctx, "t2", "s1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cross-tenant staff should miss, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	if ClampLimit(0) != DefaultListLimit || ClampLimit(10_000) != DefaultListLimit || ClampLimit(7) != 7 {
		t.Fatal("unexpected clamp")
	}
}
