package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/rawkode-academy/telemetry-sink/internal/httputil"
)

// AuthConfig controls producer authentication on the ingest API.
//
// TokenHash is the bcrypt hash of a static ingest token handed to machine
// producers. JWTSecret enables HS256 bearer tokens for everything else.
// With neither configured the middleware is a passthrough, for edge
// deployments that already sit behind an authenticating gateway.
type AuthConfig struct {
	TokenHash string
	JWTSecret string
}

// Enabled reports whether any credential check is configured.
func (c AuthConfig) Enabled() bool {
	return c.TokenHash != "" || c.JWTSecret != ""
}

// Auth validates the Authorization bearer token on every request.
func Auth(cfg AuthConfig, next http.Handler) http.Handler {
	if !cfg.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r.Header.Get("Authorization"))
		if token == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		if cfg.TokenHash != "" {
			if err := bcrypt.CompareHashAndPassword([]byte(cfg.TokenHash), []byte(token)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		if cfg.JWTSecret != "" && validJWT(token, cfg.JWTSecret) {
			next.ServeHTTP(w, r)
			return
		}

		httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
	})
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func validJWT(token, secret string) bool {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return false
	}
	return parsed.Valid
}
