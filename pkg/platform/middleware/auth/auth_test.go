package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"certledger/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func serve(t *testing.T, v JWTValidator, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var subject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = requestcontext.Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireAuth(v, slog.New(slog.NewTextHandler(io.Discard, nil)))(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, subject
}

func TestRequireAuth(t *testing.T) {
	t.Run("valid token sets subject", func(t *testing.T) {
		rec, subject := serve(t, stubValidator{claims: &JWTClaims{Subject: "issuer-app"}}, "Bearer abc")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "issuer-app", subject)
	})

	t.Run("missing header", func(t *testing.T) {
		rec, _ := serve(t, stubValidator{}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing or invalid Authorization header")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		rec, _ := serve(t, stubValidator{}, "Basic abc")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec, _ := serve(t, stubValidator{err: errors.New("bad signature")}, "Bearer abc")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid or expired token")
	})

	t.Run("token without subject", func(t *testing.T) {
		rec, _ := serve(t, stubValidator{claims: &JWTClaims{JTI: "x"}}, "Bearer abc")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
