package xid

import (
	"strings"
	"testing"
	"time"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New("prod")
		if !strings.HasPrefix(id, "prod-") {
			t.Fatalf("expected prod- prefix, got %s", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestTxnFormat(t *testing.T) {
	at := time.Date(2026, 1, 5, 23, 45, 0, 0, time.UTC)
	if got := Txn(at, 1); got != "TXN2026010500001" {
		t.Fatalf("unexpected txn id %s", got)
	}
	if got := Txn(at, 12345); got != "TXN2026010512345" {
		t.Fatalf("unexpected txn id %s", got)
	}

	// Local timestamps normalize to the UTC day.
	jakarta := time.FixedZone("WIB", 7*3600)
	local := time.Date(2026, 1, 6, 5, 0, 0, 0, jakarta)
	if got := Txn(local, 2); got != "TXN2026010500002" {
		t.Fatalf("expected UTC day in txn id, got %s", got)
	}
}
