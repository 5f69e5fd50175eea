// AngelaMos | 2026
// handler_test.go

package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/go-auth-api/internal/auth"
	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
	"github.com/carterperez-dev/templates/go-auth-api/internal/middleware"
	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type api struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T, settings auth.Settings) *api {
	t.Helper()

	jwt, err := auth.NewJWTManager(config.JWTConfig{
		Algorithm:         config.AlgorithmHS256,
		Secret:            "test-secret-with-at-least-32-bytes!!",
		AccessTokenExpire: 15 * time.Minute,
		Issuer:            "go-auth-api",
		Audience:          "go-auth-api-clients",
	})
	require.NoError(t, err)

	repo := user.NewMemoryRepository()
	authSvc := auth.NewService(repo, jwt, nil, settings)

	authenticator := middleware.Authenticator(authSvc, "bearer")
	optionalAuth := middleware.OptionalAuth(authSvc, "bearer")

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		auth.NewHandler(authSvc).RegisterRoutes(r, authenticator, nil)
		user.NewHandler(user.NewService(repo)).RegisterRoutes(r, authenticator, optionalAuth)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &api{t: t, server: srv}
}

func (a *api) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (a *api) register(email, password string) {
	a.t.Helper()

	status, env := a.do(http.MethodPost, "/api/user/register", "", map[string]string{
		"email":                email,
		"password":             password,
		"passwordConfirmation": password,
		"firstName":            "Test",
		"lastName":             "User",
	})
	require.Equal(a.t, http.StatusOK, status, "register: %+v", env.Error)
}

func (a *api) login(email, password string) string {
	a.t.Helper()

	status, env := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": email,
		"password": password,
	})
	require.Equal(a.t, http.StatusOK, status)

	var res auth.LoginResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(a.t, res.AccessToken)
	return res.AccessToken
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t, auth.Settings{})

	a.register("user001@test.com", "testonly")

	status, env := a.do(http.MethodPost, "/api/user/register", "", map[string]string{
		"email":                "USER001@test.com",
		"password":             "testonly",
		"passwordConfirmation": "testonly",
		"firstName":            "Test",
		"lastName":             "User",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DUPLICATE_RESOURCE", env.Error.Code)

	status, env = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "user001@test.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	token := a.login("user001@test.com", "testonly")

	status, env = a.do(http.MethodGet, "/api/user/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me user.LoginPayload
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "user001@test.com", me.Email)
	assert.Equal(t, "Test User", me.Profile.DisplayName)

	status, _ = a.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = a.do(http.MethodGet, "/api/user/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TOKEN_REVOKED", env.Error.Code)

	status, _ = a.do(http.MethodGet, "/api/user/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefreshFlow(t *testing.T) {
	a := newAPI(t, auth.Settings{})

	a.register("user001@test.com", "testonly")
	old := a.login("user001@test.com", "testonly")

	status, env := a.do(http.MethodPost, "/api/auth/refresh", old, nil)
	require.Equal(t, http.StatusOK, status)

	var res auth.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, old, res.AccessToken)

	status, _ = a.do(http.MethodGet, "/api/user/me", res.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = a.do(http.MethodGet, "/api/user/me", old, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TOKEN_REVOKED", env.Error.Code)

	status, _ = a.do(http.MethodPost, "/api/auth/refresh", old, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "a rotated token cannot be rotated again")
}

func TestRecoveryFlow(t *testing.T) {
	a := newAPI(t, auth.Settings{ExposeResetToken: true})

	a.register("user001@test.com", "testonly")
	session := a.login("user001@test.com", "testonly")

	status, env := a.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]string{
		"email": "nobody@test.com",
	})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{}`, string(env.Data), "unknown emails look the same as known ones")

	status, env = a.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]string{
		"email": "user001@test.com",
	})
	require.Equal(t, http.StatusOK, status)

	var forgot auth.ForgotPasswordResponse
	require.NoError(t, json.Unmarshal(env.Data, &forgot))
	require.Len(t, forgot.Token, 64)

	reset := map[string]string{
		"token":                forgot.Token,
		"password":             "brand-new-pass",
		"passwordConfirmation": "brand-new-pass",
	}

	status, _ = a.do(http.MethodPost, "/api/auth/reset-password", "", reset)
	require.Equal(t, http.StatusOK, status)

	status, env = a.do(http.MethodPost, "/api/auth/reset-password", "", reset)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_RESET_TOKEN", env.Error.Code)

	status, _ = a.do(http.MethodGet, "/api/user/me", session, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	a.login("user001@test.com", "brand-new-pass")

	status, env = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "user001@test.com",
		"password": "testonly",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
}

func TestForgotPassword_TokenHiddenOutsideTests(t *testing.T) {
	a := newAPI(t, auth.Settings{})
	a.register("user001@test.com", "testonly")

	status, env := a.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]string{
		"email": "user001@test.com",
	})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{}`, string(env.Data))
}

func TestResetPassword_Validation(t *testing.T) {
	a := newAPI(t, auth.Settings{})

	status, env := a.do(http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"token":                "short",
		"password":             "brand-new-pass",
		"passwordConfirmation": "different-pass",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}
