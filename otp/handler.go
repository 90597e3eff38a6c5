package otp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"admission-gateway/internal/httpjson"
	"admission-gateway/otp/domain"
)

const (
	ErrorCodeNotFound        = "OTP_NOT_FOUND"
	ErrorCodeExpired         = "OTP_EXPIRED"
	ErrorCodeTooManyAttempts = "OTP_TOO_MANY_ATTEMPTS"
	ErrorCodeInvalid         = "OTP_INVALID"
	ErrorCodeInvalidJSON     = "INVALID_JSON"
	ErrorCodeInvalidEmail    = "INVALID_EMAIL"
	ErrorCodeInvalidPurpose  = "INVALID_PURPOSE"
	ErrorCodeInvalidCode     = "INVALID_CODE"
	ErrorCodeDeliveryFailed  = "OTP_DELIVERY_FAILED"
	ErrorCodeInternal        = "INTERNAL_ERROR"
)

// ChallengeService é o que os handlers precisam do serviço de OTP.
type ChallengeService interface {
	Issue(ctx context.Context, identity string, purpose domain.Purpose) (string, error)
	Verify(ctx context.Context, identity string, purpose domain.Purpose, code string) (domain.VerifyResult, error)
	HasVerified(ctx context.Context, identity string, purpose domain.Purpose) (bool, error)
}

// Sender entrega o código ao usuário (email/SMS). Fica fora deste módulo.
type Sender func(ctx context.Context, identity string, purpose domain.Purpose, code string) error

type Options struct {
	Sender Sender
	// ExposeCode devolve o código em claro na resposta do issue.
	// Sem Sender o código sempre é devolvido.
	ExposeCode bool
	Logger     *slog.Logger
}

type Paths struct {
	Issue  string
	Verify string
	Status string
}

func DefaultPaths() Paths {
	return Paths{
		Issue:  "/api/otp/issue",
		Verify: "/api/otp/verify",
		Status: "/api/otp/status",
	}
}

type Handler struct {
	svc  ChallengeService
	opts Options
}

func NewHandler(svc ChallengeService, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{svc: svc, opts: opts}
}

// Register monta os três endpoints (POST) no mux.
func (h *Handler) Register(mux *http.ServeMux, p Paths) {
	def := DefaultPaths()
	if p.Issue == "" {
		p.Issue = def.Issue
	}
	if p.Verify == "" {
		p.Verify = def.Verify
	}
	if p.Status == "" {
		p.Status = def.Status
	}
	mux.Handle("POST "+p.Issue, http.HandlerFunc(h.Issue))
	mux.Handle("POST "+p.Verify, http.HandlerFunc(h.Verify))
	mux.Handle("POST "+p.Status, http.HandlerFunc(h.Status))
}

type issueRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type IssueResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type verifyRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
}

type VerifyResponse struct {
	Success  bool `json:"success"`
	Verified bool `json:"verified"`
}

type statusRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type StatusResponse struct {
	Success  bool `json:"success"`
	Verified bool `json:"verified"`
}

func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid request body")
		return
	}
	purpose, ok := h.parsePurpose(w, req.Purpose, "")
	if !ok {
		return
	}

	code, err := h.svc.Issue(r.Context(), req.Email, purpose)
	if err != nil {
		h.writeServiceError(w, r, "otp issue failed", err)
		return
	}

	resp := IssueResponse{Success: true, Message: "Verification code sent"}
	if h.opts.Sender != nil {
		identity, _ := domain.NormalizeIdentity(req.Email)
		if err := h.opts.Sender(r.Context(), identity, purpose, code); err != nil {
			h.opts.Logger.ErrorContext(r.Context(), "otp delivery failed",
				slog.String("purpose", string(purpose)), slog.Any("err", err))
			httpjson.WriteError(w, http.StatusBadGateway, ErrorCodeDeliveryFailed, "Could not deliver verification code")
			return
		}
	}
	if h.opts.Sender == nil || h.opts.ExposeCode {
		resp.Code = code
	}
	httpjson.Write(w, http.StatusOK, resp)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid request body")
		return
	}
	purpose, ok := h.parsePurpose(w, req.Purpose, "")
	if !ok {
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		httpjson.WriteError(w, http.StatusBadRequest, ErrorCodeInvalidCode, "Verification code is required")
		return
	}

	res, err := h.svc.Verify(r.Context(), req.Email, purpose, code)
	if err != nil {
		h.writeServiceError(w, r, "otp verify failed", err)
		return
	}
	if res.OK {
		httpjson.Write(w, http.StatusOK, VerifyResponse{Success: true, Verified: true})
		return
	}

	status, body := verifyFailure(res)
	httpjson.Write(w, status, body)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid request body")
		return
	}
	purpose, ok := h.parsePurpose(w, req.Purpose, domain.PurposeRegistration)
	if !ok {
		return
	}

	verified, err := h.svc.HasVerified(r.Context(), req.Email, purpose)
	if err != nil {
		h.writeServiceError(w, r, "otp status failed", err)
		return
	}
	httpjson.Write(w, http.StatusOK, StatusResponse{Success: true, Verified: verified})
}

// parsePurpose aceita vazio apenas quando há um padrão.
func (h *Handler) parsePurpose(w http.ResponseWriter, raw string, fallback domain.Purpose) (domain.Purpose, bool) {
	if strings.TrimSpace(raw) == "" && fallback != "" {
		return fallback, true
	}
	p, err := domain.ParsePurpose(raw)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, ErrorCodeInvalidPurpose, "Invalid purpose")
		return "", false
	}
	return p, true
}

func verifyFailure(res domain.VerifyResult) (int, httpjson.ErrorBody) {
	switch res.Reason {
	case domain.ReasonNotFound:
		return http.StatusBadRequest, httpjson.ErrorBody{
			Message:   "No verification code found, please request a new one",
			ErrorCode: ErrorCodeNotFound,
		}
	case domain.ReasonExpired:
		return http.StatusBadRequest, httpjson.ErrorBody{
			Message:   "Verification code expired, please request a new one",
			ErrorCode: ErrorCodeExpired,
		}
	case domain.ReasonTooManyAttempts:
		return http.StatusBadRequest, httpjson.ErrorBody{
			Message:   "Too many failed attempts, please request a new code",
			ErrorCode: ErrorCodeTooManyAttempts,
		}
	default:
		return http.StatusUnauthorized, httpjson.ErrorBody{
			Message:           "Invalid verification code",
			ErrorCode:         ErrorCodeInvalid,
			AttemptsRemaining: res.AttemptsRemaining,
		}
	}
}

// writeServiceError converte erros do serviço em JSON. Falhas internas nunca
// expõem err.Error() ao cliente.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentity):
		httpjson.WriteError(w, http.StatusBadRequest, ErrorCodeInvalidEmail, "Invalid email")
	case errors.Is(err, domain.ErrInvalidPurpose):
		httpjson.WriteError(w, http.StatusBadRequest, ErrorCodeInvalidPurpose, "Invalid purpose")
	default:
		h.opts.Logger.ErrorContext(r.Context(), msg, slog.Any("err", err))
		httpjson.WriteError(w, http.StatusInternalServerError, ErrorCodeInternal, "Internal server error")
	}
}
