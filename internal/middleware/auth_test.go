package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daladan/settlement/internal/auth"
	"github.com/daladan/settlement/internal/domain"
)

const authSecret = "middleware-test-secret"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, h http.Handler, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/escrow/release", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearerFor(t *testing.T, role domain.UserRole) string {
	t.Helper()
	token, err := auth.GenerateToken(uuid.New(), role, authSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuth(t *testing.T) {
	chain := Auth(authSecret)(okHandler())

	t.Run("valid token passes and claims reach the handler", func(t *testing.T) {
		userID := uuid.New()
		token, err := auth.GenerateToken(userID, domain.RoleRetailer, authSecret, time.Hour)
		require.NoError(t, err)

		var seen *auth.Claims
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := auth.ClaimsFromContext(r.Context())
			require.True(t, ok)
			seen = c
			w.WriteHeader(http.StatusOK)
		})

		rec := doRequest(t, Auth(authSecret)(inner), "Bearer "+token)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, userID, seen.UserID)
		assert.Equal(t, domain.RoleRetailer, seen.Role)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := doRequest(t, chain, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("not a bearer token", func(t *testing.T) {
		rec := doRequest(t, chain, "Basic dXNlcjpwYXNz")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("tampered token", func(t *testing.T) {
		rec := doRequest(t, chain, bearerFor(t, domain.RoleRetailer)+"x")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	chain := Auth(authSecret)(RequireRole(domain.RoleRetailer)(okHandler()))

	t.Run("allowed role", func(t *testing.T) {
		rec := doRequest(t, chain, bearerFor(t, domain.RoleRetailer))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin passes everywhere", func(t *testing.T) {
		rec := doRequest(t, chain, bearerFor(t, domain.RoleAdmin))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong role is forbidden", func(t *testing.T) {
		rec := doRequest(t, chain, bearerFor(t, domain.RoleDriver))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no claims in context", func(t *testing.T) {
		rec := doRequest(t, RequireRole(domain.RoleRetailer)(okHandler()), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
