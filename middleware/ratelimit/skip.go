package ratelimit

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SkipFunc decide se a requisição passa direto pelo limiter.
type SkipFunc func(r *http.Request) bool

// BearerVerifier valida um bearer token. A criptografia do token é
// responsabilidade de quem emite; aqui só consumimos o resultado.
type BearerVerifier func(token string) bool

func BearerToken(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// SkipBearer pula o limiter para requisições autenticadas. Com verify nil,
// basta a presença do header Authorization: Bearer.
func SkipBearer(verify BearerVerifier) SkipFunc {
	return func(r *http.Request) bool {
		token, ok := BearerToken(r)
		if !ok {
			return false
		}
		return verify == nil || verify(token)
	}
}

// JWTVerifier valida tokens HMAC (HS256/384/512) com o segredo informado.
func JWTVerifier(secret []byte) BearerVerifier {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	)
	keyFn := func(*jwt.Token) (any, error) { return secret, nil }
	return func(token string) bool {
		t, err := parser.Parse(token, keyFn)
		return err == nil && t.Valid
	}
}

// Route identifica um endpoint. Method vazio casa qualquer método; Path
// terminado em "*" casa por prefixo.
type Route struct {
	Method string
	Path   string
}

func (rt Route) Match(r *http.Request) bool {
	if rt.Method != "" && !strings.EqualFold(rt.Method, r.Method) {
		return false
	}
	if prefix, ok := strings.CutSuffix(rt.Path, "*"); ok {
		return strings.HasPrefix(r.URL.Path, prefix)
	}
	return r.URL.Path == rt.Path
}

// ParseRoute aceita "GET /api/menus/*" ou só "/api/menus/*".
func ParseRoute(s string) Route {
	s = strings.TrimSpace(s)
	if method, path, ok := strings.Cut(s, " "); ok {
		return Route{Method: strings.ToUpper(method), Path: strings.TrimSpace(path)}
	}
	return Route{Path: s}
}

// SkipRoutes pula o limiter para rotas de leitura de baixo risco.
func SkipRoutes(routes ...Route) SkipFunc {
	return func(r *http.Request) bool {
		for _, rt := range routes {
			if rt.Match(r) {
				return true
			}
		}
		return false
	}
}

// AnySkip combina predicados: pula se qualquer um casar.
func AnySkip(fns ...SkipFunc) SkipFunc {
	return func(r *http.Request) bool {
		for _, fn := range fns {
			if fn != nil && fn(r) {
				return true
			}
		}
		return false
	}
}
