// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
)

type stubAuthorizer struct {
	principals map[string]Principal
	err        error
}

func (s stubAuthorizer) Authorize(_ context.Context, token string) (*Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.principals[token]
	if !ok {
		return nil, fmt.Errorf("authorize: %w", core.ErrTokenRevoked)
	}
	return &p, nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body core.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func whoAmI(w http.ResponseWriter, r *http.Request, p Principal) {
	core.OK(w, map[string]string{"userId": p.UserID})
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		scheme string
		want   string
	}{
		{"Bearer abc", "bearer", "abc"},
		{"bearer abc", "", "abc"},
		{"JWT abc", "jwt", "abc"},
		{"JWT abc", "bearer", ""},
		{"abc", "bearer", ""},
		{"", "bearer", ""},
		{"Bearer   abc  ", "Bearer", "abc"},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, ExtractToken(r, tt.scheme), "header %q scheme %q", tt.header, tt.scheme)
	}
}

func TestAuthenticator(t *testing.T) {
	auth := stubAuthorizer{principals: map[string]Principal{
		"good": {UserID: "u1", Role: "user", AccessToken: "good"},
	}}
	h := Authenticator(auth, "bearer")(Authed(whoAmI))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
	})

	t.Run("revoked token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer stale")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_REVOKED", errorCode(t, rec))
	})

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"userId":"u1"`)
	})
}

func TestAuthenticator_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{core.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{core.ErrTokenInvalid, http.StatusUnauthorized, "TOKEN_INVALID"},
		{core.ErrTokenClaimMismatch, http.StatusUnauthorized, "TOKEN_INVALID"},
		{core.ErrUnauthorized, http.StatusUnauthorized, "TOKEN_INVALID"},
		{core.ErrTransient, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := Authenticator(stubAuthorizer{err: fmt.Errorf("authorize: %w", tt.err)}, "")(Authed(whoAmI))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer x")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	auth := stubAuthorizer{principals: map[string]Principal{"good": {UserID: "u1"}}}

	var seen string
	h := OptionalAuth(auth, "bearer")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, seen)

	r.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "u1", seen)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("admin", "super_admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(p *Principal) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if p != nil {
			r = r.WithContext(WithPrincipal(r.Context(), *p))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(&Principal{Role: "user"}).Code)
	assert.Equal(t, http.StatusNoContent, serve(&Principal{Role: "admin"}).Code)
	assert.Equal(t, http.StatusNoContent, serve(&Principal{Role: "super_admin"}).Code)
}
