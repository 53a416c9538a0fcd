package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedSchema(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("unexpected migrations %v", names)
	}
	raw, err := files.ReadFile(names[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"appointments_active_slot", "staff_transfers", "outbox_events", "inbox_events"} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("schema missing %s", want)
		}
	}
}
