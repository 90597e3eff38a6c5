package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("otp challenge not found")
	ErrInvalidPurpose   = errors.New("invalid otp purpose")
	ErrInvalidIdentity  = errors.New("invalid otp identity")
	ErrStoreUnavailable = errors.New("otp store unavailable")

	// ErrAttemptsExhausted indica que o desafio já atingiu o máximo de tentativas.
	ErrAttemptsExhausted = errors.New("otp attempts exhausted")
)

type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposeLogin         Purpose = "login"
	PurposePasswordReset Purpose = "password_reset"
)

func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(strings.ToLower(strings.TrimSpace(s))); p {
	case PurposeRegistration, PurposeLogin, PurposePasswordReset:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, s)
	}
}

// NormalizeIdentity deixa o email em minúsculas e sem espaços.
func NormalizeIdentity(email string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(email))
	if id == "" || !strings.Contains(id, "@") {
		return "", ErrInvalidIdentity
	}
	return id, nil
}

// Challenge é o registro persistido de um OTP. O código em claro nunca é
// guardado, apenas SecretHash.
type Challenge struct {
	ID         string
	Identity   string
	Purpose    Purpose
	SecretHash string
	Attempts   int
	Verified   bool
	VerifiedAt *time.Time
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

type Reason string

const (
	ReasonNotFound        Reason = "not_found"
	ReasonExpired         Reason = "expired"
	ReasonTooManyAttempts Reason = "too_many_attempts"
	ReasonInvalid         Reason = "invalid"
)

type VerifyResult struct {
	OK     bool
	Reason Reason
	// AttemptsRemaining só é preenchido para ReasonInvalid.
	AttemptsRemaining *int
}

// Repository é o dono da persistência dos desafios. Só o serviço de OTP o usa.
type Repository interface {
	// Replace apaga todos os desafios de (identity, purpose) e grava c, atomicamente.
	Replace(ctx context.Context, c Challenge) error
	// Latest devolve o desafio mais recente do par, ou ErrNotFound.
	Latest(ctx context.Context, identity string, purpose Purpose) (Challenge, error)
	// ReserveAttempt soma 1 em attempts só se attempts < max, atomicamente, e
	// devolve o novo valor. No limite devolve ErrAttemptsExhausted.
	ReserveAttempt(ctx context.Context, id string, max int) (int, error)
	// MarkVerified só marca se attempts <= max; caso contrário ErrNotFound.
	MarkVerified(ctx context.Context, id string, at time.Time, max int) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, identity string, purpose Purpose) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Hasher faz o hash com chave do código; a comparação é sempre entre hashes.
type Hasher interface {
	Hash(code string) string
	Equal(code, hash string) bool
}
