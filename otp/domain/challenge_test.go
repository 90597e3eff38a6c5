package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParsePurpose(t *testing.T) {
	for _, in := range []string{"registration", " LOGIN ", "password_reset"} {
		if _, err := ParsePurpose(in); err != nil {
			t.Fatalf("expected %q to parse, got %v", in, err)
		}
	}
	if _, err := ParsePurpose("signup"); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
}

func TestNormalizeIdentity(t *testing.T) {
	got, err := NormalizeIdentity("  Alice@Example.COM ")
	if err != nil || got != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q err=%v", got, err)
	}
	if _, err := NormalizeIdentity("not-an-email"); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestChallenge_ExpiredAtBoundary(t *testing.T) {
	exp := time.Unix(1_700_000_600, 0)
	c := Challenge{ExpiresAt: exp}
	if c.Expired(exp.Add(-time.Millisecond)) {
		t.Fatalf("expected not expired before expiresAt")
	}
	if !c.Expired(exp) {
		t.Fatalf("expected expired at expiresAt")
	}
}
