// AngelaMos | 2026
// dto.go

package auth

import (
	"time"

	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	Email       string       `json:"email"`
	Profile     user.Profile `json:"profile"`
	Role        string       `json:"role"`
}

func ToLoginResponse(res *LoginResult) LoginResponse {
	return LoginResponse{
		AccessToken: res.Token.AccessToken,
		ExpiresAt:   res.Token.ExpiresAt,
		Email:       res.Payload.Email,
		Profile:     res.Payload.Profile,
		Role:        res.Payload.Role,
	}
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ForgotPasswordResponse struct {
	Token string `json:"token,omitempty"`
}

type ResetPasswordRequest struct {
	Token                string `json:"token"                validate:"required,hexadecimal,len=64"`
	Password             string `json:"password"             validate:"required,min=8,max=128"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password"`
}

type ChangePasswordRequest struct {
	CurrentPassword      string `json:"currentPassword"      validate:"required,max=128"`
	Password             string `json:"password"             validate:"required,min=8,max=128"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password"`
}

type SessionInfo struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Current     bool      `json:"current"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}
