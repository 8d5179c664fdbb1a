// internal/auth/auth_test.go
package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenService(t *testing.T) {
	tokens, err := NewTokenService(testSecret)
	require.NoError(t, err)

	t.Run("round-trips the user ID", func(t *testing.T) {
		signed, err := tokens.Generate("user-42", time.Hour)
		require.NoError(t, err)

		userID, err := tokens.Validate(signed)
		require.NoError(t, err)
		assert.Equal(t, "user-42", userID)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		signed, err := tokens.Generate("user-42", -time.Minute)
		require.NoError(t, err)

		_, err = tokens.Validate(signed)
		assert.Error(t, err)
	})

	t.Run("rejects a token signed with a different secret", func(t *testing.T) {
		other, err := NewTokenService("another-secret-another-secret")
		require.NoError(t, err)
		signed, err := other.Generate("user-42", time.Hour)
		require.NoError(t, err)

		_, err = tokens.Validate(signed)
		assert.Error(t, err)
	})

	t.Run("rejects a short secret", func(t *testing.T) {
		_, err := NewTokenService("short")
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	tokens, err := NewTokenService(testSecret)
	require.NoError(t, err)

	var gotUserID string
	handler := RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("accepts a bearer token", func(t *testing.T) {
		signed, err := tokens.Generate("user-42", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", gotUserID)
	})

	t.Run("falls back to the token cookie", func(t *testing.T) {
		signed, err := tokens.Generate("user-7", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: signed})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-7", gotUserID)
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	tokens, err := NewTokenService(testSecret)
	require.NoError(t, err)

	handler := OptionalAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("anonymous requests pass through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("invalid tokens are treated as anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer junk")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("valid tokens identify the caller", func(t *testing.T) {
		signed, err := tokens.Generate("user-42", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
