// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
)

func TestCanCreate(t *testing.T) {
	tests := []struct {
		actor  string
		target string
		want   bool
	}{
		{"", RoleUser, true},
		{"", RoleAdmin, false},
		{"", RoleSuperAdmin, false},
		{RoleUser, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleSuperAdmin, false},
		{RoleSuperAdmin, RoleSuperAdmin, true},
		{RoleSuperAdmin, "root", false},
	}

	for _, tt := range tests {
		t.Run(tt.actor+"->"+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, CanCreate(tt.actor, tt.target))
		})
	}
}

func registerRequest(email string) RegisterRequest {
	return RegisterRequest{
		Email:                email,
		Password:             "testonly",
		PasswordConfirmation: "testonly",
		FirstName:            "Test",
		LastName:             "User",
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	req := registerRequest("User001@test.com")
	req.DisplayName = `<script>alert(1)</script>Test <b>User</b>`

	u, err := svc.Register(ctx, "", req)
	require.NoError(t, err)
	assert.Equal(t, "user001@test.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, StatusActive, u.Status)
	assert.Equal(t, "Test User", u.Profile.DisplayName)
	assert.NotEqual(t, "testonly", u.PasswordHash)

	_, err = svc.Register(ctx, "", registerRequest("user001@TEST.com"))
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestService_RegisterDefaultsDisplayName(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	u, err := svc.Register(context.Background(), "", registerRequest("plain@test.com"))
	require.NoError(t, err)
	assert.Equal(t, "Test User", u.Profile.DisplayName)
}

func TestService_RegisterRoleGate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	req := registerRequest("admin@test.com")
	req.Role = RoleAdmin

	_, err := svc.Register(ctx, "", req)
	assert.ErrorIs(t, err, core.ErrForbidden)

	u, err := svc.Register(ctx, RoleSuperAdmin, req)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, u.Role)
}

func TestService_Me(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	u, err := svc.Register(ctx, "", registerRequest("me@test.com"))
	require.NoError(t, err)

	payload, err := svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@test.com", payload.Email)
	assert.Equal(t, RoleUser, payload.Role)

	_, err = svc.Me(ctx, "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = svc.Me(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
