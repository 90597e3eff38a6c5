package ratelimit

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"admission-gateway/internal/clock"
	"admission-gateway/internal/httpjson"
	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
)

const (
	ErrorCodeRateLimited = "RATE_LIMIT_EXCEEDED"
	RateLimitedMessage   = "Too many requests, please try again later"
)

type Options struct {
	// Primary é o contador distribuído (Redis). Fallback é o contador em processo.
	Primary  domain.CounterStore
	Fallback domain.CounterStore

	Window    time.Duration
	Max       int64
	KeyPrefix string

	SkipWhen       SkipFunc
	OnLimitReached func(r *http.Request, identity string)

	KeyFn               KeyFunc
	Stats               domain.StatsStore
	Logger              *slog.Logger
	RejectStatus        int
	AddRateLimitHeaders bool
	// WarnEvery limita o log de fallback (padrão 10s).
	WarnEvery time.Duration
	// Clock carimba os eventos de Stats. nil = relógio do sistema.
	Clock clock.Clock
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientIdentity
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WarnEvery <= 0 {
		opts.WarnEvery = 10 * time.Second
	}
	prefix := strings.TrimSuffix(opts.KeyPrefix, ":")
	clk := clock.OrSystem(opts.Clock)

	svc := &application.Service{
		Primary:     opts.Primary,
		Fallback:    opts.Fallback,
		Window:      opts.Window,
		Max:         opts.Max,
		Logger:      opts.Logger.With(slog.String("tier", prefix)),
		WarnLimiter: application.NewWarnLimiter(opts.WarnEvery),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.SkipWhen != nil && opts.SkipWhen(r) {
				next.ServeHTTP(w, r)
				return
			}

			identity := opts.KeyFn(r)
			if identity == "" {
				identity = UnknownIdentity
			}
			key := domain.Key(identity)
			if prefix != "" {
				key = domain.Key(prefix + ":" + identity)
			}

			dec := svc.Decide(r.Context(), key)
			if opts.Stats != nil {
				if err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Tier:     prefix,
					Key:      key,
					Admitted: dec.Admitted,
					Degraded: dec.Degraded,
					Count:    dec.Count,
					Method:   r.Method,
					Path:     r.URL.Path,
					At:       clk.Now(),
				}); err != nil {
					opts.Logger.DebugContext(r.Context(), "rate limit stats record failed", slog.Any("err", err))
				}
			}

			if opts.AddRateLimitHeaders && dec.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining()))
			}

			if !dec.Admitted {
				if opts.OnLimitReached != nil {
					opts.OnLimitReached(r, identity)
				}
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				httpjson.WriteError(w, opts.RejectStatus, ErrorCodeRateLimited, RateLimitedMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LogLimitReached é um OnLimitReached pronto que registra a rejeição no logger.
func LogLimitReached(logger *slog.Logger, tier string) func(r *http.Request, identity string) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(r *http.Request, identity string) {
		logger.InfoContext(r.Context(), "rate limit reached",
			slog.String("tier", tier),
			slog.String("identity", identity),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
}
