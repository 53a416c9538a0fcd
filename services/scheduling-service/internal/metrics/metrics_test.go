package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Booking("public", "created")
	m.Booking("public", "conflict")
	m.Booking("public", "conflict")
	m.Transition("PENDING", "APPROVED")
	m.Transfer()

	if got := testutil.ToFloat64(m.bookings.WithLabelValues("public", "conflict")); got != 2 {
		t.Fatalf("expected 2 conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.transfers); got != 1 {
		t.Fatalf("expected 1 transfer, got %v", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `scheduling_status_transitions_total{from="PENDING",to="APPROVED"} 1`) {
		t.Fatalf("transition counter missing from exposition")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Booking("admin", "created")
	m.Transition("a", "b")
	m.Transfer()
	m.Deletion()
}
