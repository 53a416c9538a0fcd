package pgstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"slot index", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot"}, model.ErrBookingConflict},
		{"other unique", &pgconn.PgError{Code: "23505", ConstraintName: "availability_templates_pkey"}, model.ErrInvalidInput},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "availability_templates_check"}, model.ErrInvalidInput},
		{"fk", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23503"}), model.ErrNotFound},
	}
	for _, tc := range cases {
		if got := translate(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
	if translate(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	plain := errors.New("io")
	if translate(plain) != plain {
		t.Fatal("non-pg errors pass through")
	}
}

func TestParseMoney(t *testing.T) {
	d, err := parseMoney("25.50")
	if err != nil || d.String() != "25.5" {
		t.Fatalf("unexpected %v %v", d, err)
	}
	if d, err := parseMoney(""); err != nil || !d.IsZero() {
		t.Fatalf("empty should be zero, got %v %v", d, err)
	}
	if _, err := parseMoney("abc"); err == nil {
		t.Fatal("expected error")
	}
}

func TestIsUUID(t *testing.T) {
	if !isUUID("6f1c1b9e-2f7a-4c1e-9f59-0b4f3f8f2a11") || isUUID("a1") {
		t.Fatal("unexpected uuid check")
	}
}
