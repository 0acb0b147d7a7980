package source

import (
	"testing"
	"time"
)

func TestNextBackoffDoublesUntilCap(t *testing.T) {
	cur := backoffInitial
	seen := []time.Duration{cur}
	for i := 0; i < 10; i++ {
		cur = nextBackoff(cur)
		seen = append(seen, cur)
	}
	for _, d := range seen {
		if d > backoffMax {
			t.Fatalf("backoff %v exceeded cap %v", d, backoffMax)
		}
	}
	if seen[len(seen)-1] != backoffMax {
		t.Fatalf("expected backoff to saturate at %v, got %v", backoffMax, seen[len(seen)-1])
	}
	if seen[1] != 2*backoffInitial {
		t.Fatalf("expected first doubling to be %v, got %v", 2*backoffInitial, seen[1])
	}
}

func TestNewDefaultsLogger(t *testing.T) {
	desc := Descriptor{SourceID: 1, Hostname: "example.invalid"}
	sup := New(desc, nil)
	if sup == nil {
		t.Fatal("expected non-nil Supervisor")
	}
	if sup.desc.SourceID != 1 {
		t.Fatalf("expected source id 1, got %d", sup.desc.SourceID)
	}
}
