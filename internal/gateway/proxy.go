package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"admission-gateway/internal/httpjson"
)

const ErrorCodeBadGateway = "BAD_GATEWAY"

// NewUpstreamProxy cria o reverse proxy para o upstream. Falhas de conexão
// viram 502 em JSON, no mesmo formato dos demais erros da borda.
func NewUpstreamProxy(rawURL string, logger *slog.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid UPSTREAM_URL %q: scheme and host are required", rawURL)
	}
	if logger == nil {
		logger = slog.Default()
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.ErrorContext(r.Context(), "proxy error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		httpjson.WriteError(w, http.StatusBadGateway, ErrorCodeBadGateway, "Bad gateway")
	}
	return proxy, nil
}
