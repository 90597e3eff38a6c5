package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"admission-gateway/internal/clock"
	"admission-gateway/middleware/ratelimit/domain"
)

func TestMemoryCounter_CountsWithinWindow(t *testing.T) {
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	c := NewMemoryCounter(WithMemoryClock(clk), WithSweepProbability(0))
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := c.RecordAndCount(ctx, domain.Key("k"), time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != i {
			t.Fatalf("expected count %d, got %d", i, n)
		}
	}

	clk.Advance(1100 * time.Millisecond)
	n, _ := c.RecordAndCount(ctx, domain.Key("k"), time.Second)
	if n != 1 {
		t.Fatalf("expected window to slide back to 1, got %d", n)
	}
}

func TestMemoryCounter_WindowIncludesLowerBound(t *testing.T) {
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	c := NewMemoryCounter(WithMemoryClock(clk), WithSweepProbability(0))
	ctx := context.Background()

	_, _ = c.RecordAndCount(ctx, domain.Key("edge"), time.Second)
	_, _ = c.RecordAndCount(ctx, domain.Key("past"), time.Second)

	// exatamente now-window ainda conta
	clk.Advance(time.Second)
	if n, _ := c.RecordAndCount(ctx, domain.Key("edge"), time.Second); n != 2 {
		t.Fatalf("expected entry at now-window to be kept, got %d", n)
	}

	clk.Advance(time.Millisecond)
	if n, _ := c.RecordAndCount(ctx, domain.Key("past"), time.Second); n != 1 {
		t.Fatalf("expected entry older than now-window to be dropped, got %d", n)
	}
}

func TestMemoryCounter_KeysAreIndependent(t *testing.T) {
	c := NewMemoryCounter(WithSweepProbability(0))
	ctx := context.Background()

	_, _ = c.RecordAndCount(ctx, domain.Key("a"), time.Minute)
	_, _ = c.RecordAndCount(ctx, domain.Key("a"), time.Minute)
	n, _ := c.RecordAndCount(ctx, domain.Key("b"), time.Minute)
	if n != 1 {
		t.Fatalf("expected independent key count 1, got %d", n)
	}
}

func TestMemoryCounter_CleanupRemovesExpiredKeys(t *testing.T) {
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	c := NewMemoryCounter(WithMemoryClock(clk), WithSweepProbability(0), WithCleanupEvery(0))
	ctx := context.Background()

	_, _ = c.RecordAndCount(ctx, domain.Key("old"), 10*time.Millisecond)
	_, _ = c.RecordAndCount(ctx, domain.Key("fresh"), time.Hour)

	clk.Advance(20 * time.Millisecond)
	c.Cleanup()

	if got := c.Len(); got != 1 {
		t.Fatalf("expected only fresh key to survive cleanup, got %d keys", got)
	}
}

func TestMemoryCounter_ProbabilisticSweepRunsWhenDrawHits(t *testing.T) {
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	draw := 0.99
	c := NewMemoryCounter(
		WithMemoryClock(clk),
		WithSweepProbability(0.1),
		WithRandSource(func() float64 { return draw }),
	)
	ctx := context.Background()

	_, _ = c.RecordAndCount(ctx, domain.Key("old"), 10*time.Millisecond)
	clk.Advance(20 * time.Millisecond)

	// sorteio acima da probabilidade: sem varredura
	_, _ = c.RecordAndCount(ctx, domain.Key("other"), time.Hour)
	if got := c.Len(); got != 2 {
		t.Fatalf("expected no sweep, got %d keys", got)
	}

	draw = 0.01
	_, _ = c.RecordAndCount(ctx, domain.Key("other"), time.Hour)
	if got := c.Len(); got != 1 {
		t.Fatalf("expected sweep to drop expired key, got %d keys", got)
	}
}

func TestMemoryCounter_ConcurrentCallsDoNotLoseUpdates(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = c.RecordAndCount(ctx, domain.Key("shared"), time.Minute)
		}()
	}
	wg.Wait()

	got, _ := c.RecordAndCount(ctx, domain.Key("shared"), time.Minute)
	if got != n+1 {
		t.Fatalf("expected %d events, got %d", n+1, got)
	}
}

func TestMemoryCounter_JanitorStopsOnCancel(t *testing.T) {
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	c := NewMemoryCounter(WithMemoryClock(clk), WithSweepProbability(0), WithCleanupEvery(time.Millisecond))

	_, _ = c.RecordAndCount(context.Background(), domain.Key("k"), time.Millisecond)
	clk.Advance(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartJanitor(ctx)

	deadline := time.Now().Add(time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("janitor did not clean expired key")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
