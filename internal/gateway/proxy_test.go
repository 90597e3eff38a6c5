package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewUpstreamProxy_Forwards(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream-Path", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	proxy, err := NewUpstreamProxy(upstream.URL, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://gw/api/items", nil))
	if w.Code != http.StatusCreated || w.Header().Get("X-Upstream-Path") != "/api/items" {
		t.Fatalf("unexpected proxied response: %d %v", w.Code, w.Header())
	}
}

func TestNewUpstreamProxy_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	proxy, err := NewUpstreamProxy(addr, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/api/items", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["errorCode"] != ErrorCodeBadGateway {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestNewUpstreamProxy_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "upstream:3000", "://bad"} {
		if _, err := NewUpstreamProxy(raw, nil); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
