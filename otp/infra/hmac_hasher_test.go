package infra

import (
	"errors"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewHMACHasher_RejectsWeakSecret(t *testing.T) {
	for _, secret := range []string{"", "short", strings.Repeat("x", MinSecretLen-1), strings.Repeat(" ", 40)} {
		if _, err := NewHMACHasher(secret); !errors.Is(err, ErrWeakSecret) {
			t.Fatalf("secret %q: expected ErrWeakSecret, got %v", secret, err)
		}
	}
}

func TestHMACHasher_RoundTrip(t *testing.T) {
	h, err := NewHMACHasher(testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hash := h.Hash("123456")
	if hash == "123456" || len(hash) != 64 {
		t.Fatalf("unexpected hash %q", hash)
	}
	if hash != h.Hash("123456") {
		t.Fatalf("expected deterministic hash")
	}
	if !h.Equal("123456", hash) {
		t.Fatalf("expected matching code to compare equal")
	}
	if h.Equal("123457", hash) {
		t.Fatalf("expected different code to mismatch")
	}
	if h.Equal("123456", "not-hex") {
		t.Fatalf("expected malformed hash to mismatch")
	}
}

func TestHMACHasher_SecretChangesHash(t *testing.T) {
	a, _ := NewHMACHasher(testSecret)
	b, _ := NewHMACHasher(strings.Repeat("z", 32))
	if a.Hash("123456") == b.Hash("123456") {
		t.Fatalf("expected different secrets to produce different hashes")
	}
	if b.Equal("123456", a.Hash("123456")) {
		t.Fatalf("expected hash from another secret to mismatch")
	}
}
