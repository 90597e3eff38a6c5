package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, secret []byte, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	if _, ok := BearerToken(r); ok {
		t.Fatalf("expected no token without header")
	}
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, ok := BearerToken(r); ok {
		t.Fatalf("expected basic auth to not count as bearer")
	}
	r.Header.Set("Authorization", "bearer   abc.def.ghi ")
	if tok, ok := BearerToken(r); !ok || tok != "abc.def.ghi" {
		t.Fatalf("expected bearer token, got %q ok=%v", tok, ok)
	}
}

func TestSkipBearer_WithJWTVerifier(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	skip := SkipBearer(JWTVerifier(secret))

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, secret, time.Now().Add(time.Hour)))
	if !skip(r) {
		t.Fatalf("expected valid token to skip")
	}

	r.Header.Set("Authorization", "Bearer "+signedToken(t, []byte("another-secret-another-secret-xx"), time.Now().Add(time.Hour)))
	if skip(r) {
		t.Fatalf("expected token signed with another secret to not skip")
	}

	r.Header.Set("Authorization", "Bearer "+signedToken(t, secret, time.Now().Add(-time.Hour)))
	if skip(r) {
		t.Fatalf("expected expired token to not skip")
	}

	r.Header.Set("Authorization", "Bearer not-a-jwt")
	if skip(r) {
		t.Fatalf("expected garbage token to not skip")
	}
}

func TestSkipRoutes_MethodAndPrefix(t *testing.T) {
	skip := SkipRoutes(ParseRoute("GET /api/menus/*"), ParseRoute("/healthz"))

	cases := []struct {
		method, path string
		want         bool
	}{
		{http.MethodGet, "/api/menus/42", true},
		{http.MethodPost, "/api/menus/42", false},
		{http.MethodGet, "/healthz", true},
		{http.MethodPost, "/healthz", true},
		{http.MethodGet, "/healthz/deep", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, "http://example"+tc.path, nil)
		if got := skip(r); got != tc.want {
			t.Fatalf("%s %s: expected %v, got %v", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestAnySkip(t *testing.T) {
	never := func(*http.Request) bool { return false }
	always := func(*http.Request) bool { return true }
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)

	if AnySkip(never, nil)(r) {
		t.Fatalf("expected no skip")
	}
	if !AnySkip(never, always)(r) {
		t.Fatalf("expected skip when any predicate matches")
	}
}
