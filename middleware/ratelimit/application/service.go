package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Service concentra a regra de aplicação do rate limit de janela deslizante.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Cada chamada tenta o contador distribuído primeiro; se falhar, aquela
// requisição (e só ela) é contada no fallback local. Não há estado de circuito.
type Service struct {
	Primary  domain.CounterStore
	Fallback domain.CounterStore
	Window   time.Duration
	Max      int64

	Logger *slog.Logger
	// WarnLimiter limita a frequência do aviso de fallback. nil = avisa sempre.
	WarnLimiter *rate.Limiter
}

// NewWarnLimiter devolve um limiter de log: no máximo um aviso a cada `every`.
func NewWarnLimiter(every time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(every), 1)
}

func (s *Service) Decide(ctx context.Context, key domain.Key) domain.Decision {
	if s == nil || s.Max <= 0 || s.Window <= 0 || (s.Primary == nil && s.Fallback == nil) {
		return domain.Decision{Admitted: true}
	}

	count, degraded, err := s.count(ctx, key)
	if err != nil {
		// sem nenhum contador disponível: não bloqueia tráfego
		s.warn(ctx, "rate limit counters unavailable, admitting request", key, err)
		return domain.Decision{Admitted: true, Limit: s.Max, Degraded: true}
	}

	dec := domain.Decision{
		Admitted: count <= s.Max,
		Count:    count,
		Limit:    s.Max,
		Degraded: degraded,
	}
	if !dec.Admitted {
		dec.RetryAfter = s.Window
	}
	return dec
}

func (s *Service) count(ctx context.Context, key domain.Key) (int64, bool, error) {
	var primaryErr error
	if s.Primary != nil {
		n, err := s.Primary.RecordAndCount(ctx, key, s.Window)
		if err == nil {
			return n, false, nil
		}
		primaryErr = err
	}
	if s.Fallback == nil {
		return 0, true, primaryErr
	}
	if primaryErr != nil {
		s.warn(ctx, "distributed counter unavailable, using in-process fallback", key, primaryErr)
	}

	n, err := s.Fallback.RecordAndCount(ctx, key, s.Window)
	if err != nil {
		return 0, true, errors.Join(primaryErr, err)
	}
	return n, primaryErr != nil, nil
}

func (s *Service) warn(ctx context.Context, msg string, key domain.Key, err error) {
	if s.WarnLimiter != nil && !s.WarnLimiter.Allow() {
		return
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, msg, slog.String("key", string(key)), slog.Any("err", err))
}
