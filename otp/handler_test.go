package otp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"admission-gateway/internal/clock"
	"admission-gateway/otp/application"
	"admission-gateway/otp/domain"
	"admission-gateway/otp/infra"
)

func newTestMux(t *testing.T, opts Options) (*http.ServeMux, *clock.Manual) {
	t.Helper()

	h, err := infra.NewHMACHasher("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	clk := clock.NewManual(time.UnixMilli(1_700_000_000_000))
	svc := &application.Service{Repo: infra.NewMemoryRepository(), Hasher: h, Clock: clk}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mux := http.NewServeMux()
	NewHandler(svc, opts).Register(mux, Paths{})
	return mux, clk
}

func post(mux http.Handler, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid json body %q: %v", w.Body.String(), err)
	}
	return m
}

func issueCode(t *testing.T, mux http.Handler, email, purpose string) string {
	t.Helper()
	w := post(mux, "/api/otp/issue", `{"email":"`+email+`","purpose":"`+purpose+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("issue: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var resp IssueResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || resp.Code == "" {
		t.Fatalf("expected code in response without sender, got %+v", resp)
	}
	return resp.Code
}

func TestHandler_IssueVerifyStatusFlow(t *testing.T) {
	mux, _ := newTestMux(t, Options{})
	code := issueCode(t, mux, "alice@example.com", "registration")

	w := post(mux, "/api/otp/status", `{"email":"alice@example.com"}`)
	if m := decodeMap(t, w); w.Code != http.StatusOK || m["verified"] != false {
		t.Fatalf("expected verified=false, got %d %v", w.Code, m)
	}

	w = post(mux, "/api/otp/verify", `{"email":"alice@example.com","purpose":"registration","code":"`+code+`"}`)
	if m := decodeMap(t, w); w.Code != http.StatusOK || m["success"] != true || m["verified"] != true {
		t.Fatalf("expected verify success, got %d %v", w.Code, m)
	}

	w = post(mux, "/api/otp/status", `{"email":"ALICE@example.com","purpose":"registration"}`)
	if m := decodeMap(t, w); m["verified"] != true {
		t.Fatalf("expected verified=true, got %v", m)
	}
}

func TestHandler_VerifyInvalidReportsAttemptsRemaining(t *testing.T) {
	mux, _ := newTestMux(t, Options{})
	code := issueCode(t, mux, "bob@example.com", "login")
	bad := "000000"
	if code == bad {
		bad = "111111"
	}

	w := post(mux, "/api/otp/verify", `{"email":"bob@example.com","purpose":"login","code":"`+bad+`"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	m := decodeMap(t, w)
	if m["success"] != false || m["errorCode"] != ErrorCodeInvalid || m["attemptsRemaining"] != float64(4) {
		t.Fatalf("unexpected body %v", m)
	}
}

func TestHandler_VerifyFailureStatuses(t *testing.T) {
	mux, clk := newTestMux(t, Options{})

	w := post(mux, "/api/otp/verify", `{"email":"x@example.com","purpose":"login","code":"123456"}`)
	if m := decodeMap(t, w); w.Code != http.StatusBadRequest || m["errorCode"] != ErrorCodeNotFound {
		t.Fatalf("expected 400 not found, got %d %v", w.Code, m)
	}
	if _, ok := decodeMap(t, w)["attemptsRemaining"]; ok {
		t.Fatalf("attemptsRemaining must only be set for invalid codes")
	}

	code := issueCode(t, mux, "x@example.com", "login")
	clk.Advance(application.DefaultTTL)
	w = post(mux, "/api/otp/verify", `{"email":"x@example.com","purpose":"login","code":"`+code+`"}`)
	if m := decodeMap(t, w); w.Code != http.StatusBadRequest || m["errorCode"] != ErrorCodeExpired {
		t.Fatalf("expected 400 expired, got %d %v", w.Code, m)
	}
}

func TestHandler_BadInput(t *testing.T) {
	mux, _ := newTestMux(t, Options{})

	cases := []struct {
		name, path, body, code string
	}{
		{"malformed json", "/api/otp/issue", `{`, ErrorCodeInvalidJSON},
		{"empty body", "/api/otp/issue", ``, ErrorCodeInvalidJSON},
		{"bad purpose", "/api/otp/issue", `{"email":"a@b.io","purpose":"signup"}`, ErrorCodeInvalidPurpose},
		{"bad email", "/api/otp/issue", `{"email":"nope","purpose":"login"}`, ErrorCodeInvalidEmail},
		{"missing code", "/api/otp/verify", `{"email":"a@b.io","purpose":"login"}`, ErrorCodeInvalidCode},
		{"status bad email", "/api/otp/status", `{"email":""}`, ErrorCodeInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(mux, tc.path, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if m := decodeMap(t, w); m["errorCode"] != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, m)
			}
		})
	}
}

func TestHandler_SenderHidesCode(t *testing.T) {
	var delivered string
	mux, _ := newTestMux(t, Options{
		Sender: func(_ context.Context, identity string, purpose domain.Purpose, code string) error {
			if identity != "carol@example.com" || purpose != domain.PurposePasswordReset {
				t.Errorf("unexpected delivery target %s/%s", identity, purpose)
			}
			delivered = code
			return nil
		},
	})

	w := post(mux, "/api/otp/issue", `{"email":" Carol@Example.com","purpose":"password_reset"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, ok := decodeMap(t, w)["code"]; ok {
		t.Fatalf("expected code to be hidden when a sender is configured")
	}
	if len(delivered) != application.DefaultDigits {
		t.Fatalf("expected sender to receive the code, got %q", delivered)
	}
}

func TestHandler_SenderFailure(t *testing.T) {
	mux, _ := newTestMux(t, Options{
		Sender: func(context.Context, string, domain.Purpose, string) error {
			return errors.New("smtp down")
		},
	})

	w := post(mux, "/api/otp/issue", `{"email":"d@example.com","purpose":"login"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "smtp") {
		t.Fatalf("internal error leaked to client: %s", w.Body.String())
	}
}

type failingService struct{}

func (failingService) Issue(context.Context, string, domain.Purpose) (string, error) {
	return "", domain.ErrStoreUnavailable
}

func (failingService) Verify(context.Context, string, domain.Purpose, string) (domain.VerifyResult, error) {
	return domain.VerifyResult{}, domain.ErrStoreUnavailable
}

func (failingService) HasVerified(context.Context, string, domain.Purpose) (bool, error) {
	return false, domain.ErrStoreUnavailable
}

func TestHandler_StoreFailureIsGeneric(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(failingService{}, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}).Register(mux, DefaultPaths())

	w := post(mux, "/api/otp/verify", `{"email":"a@b.io","purpose":"login","code":"123456"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if m := decodeMap(t, w); m["errorCode"] != ErrorCodeInternal || strings.Contains(w.Body.String(), "unavailable") {
		t.Fatalf("unexpected body %v", m)
	}
}
