// Package gateway monta a cadeia de admissão na frente do upstream:
//
//	limiter geral -> limiter estrito (rotas de auth) -> mux (OTP | proxy)
package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"admission-gateway/internal/clock"
	"admission-gateway/internal/config"
	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/otp"
)

const (
	TierGeneral = "general"
	TierAuth    = "auth"
)

type Deps struct {
	Config config.Config

	// Upstream recebe tudo que não é rota de OTP.
	Upstream http.Handler
	// OTP é opcional; nil não monta os endpoints.
	OTP      *otp.Handler
	OTPPaths otp.Paths

	Primary  domain.CounterStore
	Fallback domain.CounterStore
	Stats    domain.StatsStore
	Logger   *slog.Logger
	// Clock carimba os eventos de Stats. nil = relógio do sistema.
	Clock clock.Clock
}

func New(d Deps) (http.Handler, error) {
	if d.Upstream == nil {
		return nil, errors.New("gateway: upstream handler is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	if d.OTP != nil {
		d.OTP.Register(mux, d.OTPPaths)
	}
	mux.Handle("/", d.Upstream)

	h := http.Handler(mux)
	rc := d.Config.Rate
	if !rc.Enabled {
		return h, nil
	}

	var keyFn ratelimit.KeyFunc = ratelimit.ClientIdentity
	if rc.KeyHeader != "" {
		keyFn = ratelimit.HeaderKeyFunc(rc.KeyHeader, ratelimit.ClientIdentity)
	}
	prefix := strings.TrimSuffix(rc.KeyPrefix, ":")

	h = ratelimit.Middleware(ratelimit.Options{
		Primary:             d.Primary,
		Fallback:            d.Fallback,
		Window:              rc.Window,
		Max:                 rc.MaxAuth,
		KeyPrefix:           tierPrefix(prefix, TierAuth),
		SkipWhen:            StrictSkip(d.Config.AuthPaths, d.Config.SessionCheckPath),
		OnLimitReached:      ratelimit.LogLimitReached(d.Logger, TierAuth),
		KeyFn:               keyFn,
		Stats:               d.Stats,
		Logger:              d.Logger,
		Clock:               d.Clock,
		AddRateLimitHeaders: rc.AddHeaders,
	})(h)

	h = ratelimit.Middleware(ratelimit.Options{
		Primary:             d.Primary,
		Fallback:            d.Fallback,
		Window:              rc.Window,
		Max:                 rc.MaxGeneral,
		KeyPrefix:           tierPrefix(prefix, TierGeneral),
		SkipWhen:            GeneralSkip(d.Config.JWTSecret, rc.SkipRoutes),
		OnLimitReached:      ratelimit.LogLimitReached(d.Logger, TierGeneral),
		KeyFn:               keyFn,
		Stats:               d.Stats,
		Logger:              d.Logger,
		Clock:               d.Clock,
		AddRateLimitHeaders: rc.AddHeaders,
	})(h)

	return h, nil
}

// GeneralSkip libera requisições autenticadas e as rotas de leitura listadas.
// Com secret vazio, a presença do bearer basta.
func GeneralSkip(jwtSecret string, skipRoutes []string) ratelimit.SkipFunc {
	var verify ratelimit.BearerVerifier
	if jwtSecret != "" {
		verify = ratelimit.JWTVerifier([]byte(jwtSecret))
	}
	return ratelimit.AnySkip(
		ratelimit.SkipBearer(verify),
		ratelimit.SkipRoutes(parseRoutes(skipRoutes)...),
	)
}

// StrictSkip aplica o tier estrito só nas rotas de auth, exceto o
// session-check, que é consultado com frequência por clientes legítimos.
func StrictSkip(authPaths []string, sessionCheckPath string) ratelimit.SkipFunc {
	auth := parseRoutes(authPaths)
	session := strings.TrimSpace(sessionCheckPath)
	return func(r *http.Request) bool {
		if session != "" && r.URL.Path == session {
			return true
		}
		for _, rt := range auth {
			if rt.Match(r) {
				return false
			}
		}
		return true
	}
}

func parseRoutes(specs []string) []ratelimit.Route {
	out := make([]ratelimit.Route, 0, len(specs))
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, ratelimit.ParseRoute(s))
	}
	return out
}

func tierPrefix(prefix, tier string) string {
	if prefix == "" {
		return tier
	}
	return prefix + ":" + tier
}

// NewServer aplica os timeouts usados pelo gateway.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}
