package application

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

type fakeCounter struct {
	n     int64
	err   error
	calls int
}

func (f *fakeCounter) RecordAndCount(context.Context, domain.Key, time.Duration) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	f.n++
	return f.n, nil
}

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestService_Decide_AdmitsWhenUnconfigured(t *testing.T) {
	svc := &Service{}
	dec := svc.Decide(context.Background(), "k")
	if !dec.Admitted {
		t.Fatalf("expected admitted")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when admitted, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_RejectsAboveMax(t *testing.T) {
	primary := &fakeCounter{}
	svc := &Service{Primary: primary, Fallback: &fakeCounter{}, Window: time.Second, Max: 3}

	for i := 0; i < 3; i++ {
		if dec := svc.Decide(context.Background(), "k"); !dec.Admitted {
			t.Fatalf("expected request %d admitted", i+1)
		}
	}
	dec := svc.Decide(context.Background(), "k")
	if dec.Admitted {
		t.Fatalf("expected 4th request rejected")
	}
	if dec.Count != 4 || dec.Limit != 3 {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if dec.RetryAfter != time.Second {
		t.Fatalf("expected RetryAfter=window, got %s", dec.RetryAfter)
	}
	if dec.Degraded {
		t.Fatalf("expected non-degraded decision from primary")
	}
}

func TestService_Decide_FallsBackPerRequest(t *testing.T) {
	primary := &fakeCounter{err: domain.ErrCounterUnavailable}
	fallback := &fakeCounter{}
	var logs bytes.Buffer
	svc := &Service{Primary: primary, Fallback: fallback, Window: time.Second, Max: 1, Logger: quietLogger(&logs)}

	dec := svc.Decide(context.Background(), "k")
	if !dec.Admitted || !dec.Degraded {
		t.Fatalf("expected degraded admission, got %+v", dec)
	}
	// fallback ainda aplica limite
	dec = svc.Decide(context.Background(), "k")
	if dec.Admitted {
		t.Fatalf("expected fallback to enforce the bound")
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Fatalf("expected warning log, got %q", logs.String())
	}

	// primário voltou: a próxima requisição já usa o Redis de novo
	primary.err = nil
	dec = svc.Decide(context.Background(), "k")
	if dec.Degraded || primary.calls != 3 {
		t.Fatalf("expected primary to be retried on every request, got %+v calls=%d", dec, primary.calls)
	}
}

func TestService_Decide_WarnLimiterThrottlesLogs(t *testing.T) {
	var logs bytes.Buffer
	svc := &Service{
		Primary:     &fakeCounter{err: domain.ErrCounterUnavailable},
		Fallback:    &fakeCounter{},
		Window:      time.Second,
		Max:         100,
		Logger:      quietLogger(&logs),
		WarnLimiter: NewWarnLimiter(time.Hour),
	}

	for i := 0; i < 5; i++ {
		svc.Decide(context.Background(), "k")
	}
	if got := strings.Count(logs.String(), "level=WARN"); got != 1 {
		t.Fatalf("expected a single throttled warning, got %d", got)
	}
}

func TestService_Decide_AdmitsWhenEveryCounterFails(t *testing.T) {
	var logs bytes.Buffer
	svc := &Service{
		Primary:  &fakeCounter{err: domain.ErrCounterUnavailable},
		Fallback: &fakeCounter{err: errors.New("boom")},
		Window:   time.Second,
		Max:      1,
		Logger:   quietLogger(&logs),
	}

	dec := svc.Decide(context.Background(), "k")
	if !dec.Admitted || !dec.Degraded {
		t.Fatalf("expected fail-open degraded decision, got %+v", dec)
	}
}

func TestDecision_Remaining(t *testing.T) {
	if got := (domain.Decision{Count: 2, Limit: 5}).Remaining(); got != 3 {
		t.Fatalf("expected 3 remaining, got %d", got)
	}
	if got := (domain.Decision{Count: 7, Limit: 5}).Remaining(); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
}
