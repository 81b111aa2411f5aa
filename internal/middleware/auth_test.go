package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doAuth(t *testing.T, cfg AuthConfig, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	Auth(cfg, okHandler()).ServeHTTP(rec, req)
	return rec
}

func TestAuthDisabledPassthrough(t *testing.T) {
	rec := doAuth(t, AuthConfig{}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthStaticToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("ingest-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := AuthConfig{TokenHash: string(hash)}

	assert.Equal(t, http.StatusOK, doAuth(t, cfg, "Bearer ingest-secret").Code)
	assert.Equal(t, http.StatusUnauthorized, doAuth(t, cfg, "Bearer wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, doAuth(t, cfg, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doAuth(t, cfg, "Basic abc").Code)
}

func TestAuthJWT(t *testing.T) {
	cfg := AuthConfig{JWTSecret: "jwt-secret"}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "producer-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("jwt-secret"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doAuth(t, cfg, "Bearer "+signed).Code)

	wrongKey, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doAuth(t, cfg, "Bearer "+wrongKey).Code)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "producer-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signedExpired, err := expired.SignedString([]byte("jwt-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doAuth(t, cfg, "Bearer "+signedExpired).Code)
}

func TestAuthEitherCredentialAccepted(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("static"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := AuthConfig{TokenHash: string(hash), JWTSecret: "jwt-secret"}

	assert.Equal(t, http.StatusOK, doAuth(t, cfg, "Bearer static").Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("jwt-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doAuth(t, cfg, "Bearer "+signed).Code)
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractBearer(tt.header), "header %q", tt.header)
	}
}
