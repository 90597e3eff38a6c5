package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

type KeyFunc func(r *http.Request) string

// UnknownIdentity é usado quando nenhuma fonte de identidade está disponível.
const UnknownIdentity = "unknown"

// ClientIdentity resolve a identidade do cliente, da fonte mais confiável
// (mais perto da borda) para a menos:
//
//  1. IP informado pela CDN (CF-Connecting-IP / True-Client-IP)
//  2. X-Real-IP do reverse proxy
//  3. primeiro IP do X-Forwarded-For (cliente original)
//  4. host do RemoteAddr
//  5. "unknown"
func ClientIdentity(r *http.Request) string {
	for _, h := range []string{"CF-Connecting-IP", "True-Client-IP", "X-Real-IP"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return UnknownIdentity
}

// HeaderKeyFunc usa o valor de um header (ex: X-Api-Key) quando presente e cai
// em fallback caso contrário.
func HeaderKeyFunc(keyHeader string, fallback KeyFunc) KeyFunc {
	if fallback == nil {
		fallback = ClientIdentity
	}
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		return fallback(r)
	}
}
