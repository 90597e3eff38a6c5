package infra

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// MinSecretLen é o tamanho mínimo aceito para o segredo do HMAC.
const MinSecretLen = 32

var ErrWeakSecret = errors.New("otp hashing secret missing or shorter than 32 bytes")

// HMACHasher implementa domain.Hasher com HMAC-SHA256 (hex).
type HMACHasher struct {
	secret []byte
}

func NewHMACHasher(secret string) (*HMACHasher, error) {
	if len(strings.TrimSpace(secret)) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	return &HMACHasher{secret: []byte(secret)}, nil
}

func (h *HMACHasher) Hash(code string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(strings.TrimSpace(code)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compara em tempo constante o hash do código com o hash guardado.
func (h *HMACHasher) Equal(code, hash string) bool {
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(strings.TrimSpace(code)))
	return hmac.Equal(mac.Sum(nil), want)
}
