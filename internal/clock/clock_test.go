package clock

import (
	"testing"
	"time"
)

func TestManual_AdvanceMovesForward(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := NewManual(start)

	c.Advance(1500 * time.Millisecond)
	if got := c.Now().Sub(start); got != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s elapsed, got %s", got)
	}

	// negativo não volta no tempo
	c.Advance(-time.Hour)
	if got := c.Now().Sub(start); got != 1500*time.Millisecond {
		t.Fatalf("expected clock unchanged after negative advance, got %s", got)
	}
}

func TestOrSystem_NilUsesSystemClock(t *testing.T) {
	c := OrSystem(nil)
	before := time.Now()
	got := c.Now()
	if got.Before(before.Add(-time.Second)) {
		t.Fatalf("expected system time, got %s", got)
	}

	m := NewManual(time.Unix(0, 0))
	if OrSystem(m) != Clock(m) {
		t.Fatalf("expected manual clock to be returned unchanged")
	}
}
