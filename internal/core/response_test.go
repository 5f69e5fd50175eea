// AngelaMos | 2026
// response_test.go

package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestOK_EmptyData(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{}`, string(env.Data))
	assert.Nil(t, env.Error)
}

func TestJSONError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, DuplicateError("email"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DUPLICATE_RESOURCE", env.Error.Code)
	assert.Equal(t, "email already exists", env.Error.Message)
}

func TestJSONError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, errors.New("pq: connection refused on 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}

type signup struct {
	Email                string `json:"email"                validate:"required,email"`
	Password             string `json:"password"             validate:"required,min=8"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password"`
}

func TestDecodeAndValidate(t *testing.T) {
	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		body := `{"email":"a@test.com","password":"testonly","passwordConfirmation":"testonly"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()

		var dst signup
		assert.True(t, DecodeAndValidate(rec, req, v, &dst))
		assert.Equal(t, "a@test.com", dst.Email)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		rec := httptest.NewRecorder()

		var dst signup
		assert.False(t, DecodeAndValidate(rec, req, v, &dst))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "BAD_REQUEST", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		body := `{"email":"nope","password":"short","passwordConfirmation":"other"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()

		var dst signup
		assert.False(t, DecodeAndValidate(rec, req, v, &dst))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		env := decodeEnvelope(t, rec)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

		fields := map[string]string{}
		for _, d := range env.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "invalid e-mail", fields["email"])
		assert.Equal(t, "password must be at least 8 characters", fields["password"])
		assert.Equal(t, "passwordConfirmation must match password", fields["passwordConfirmation"])
		assert.NotContains(t, rec.Body.String(), "short", "submitted values are never echoed")
	})
}
