// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type RegisterRequest struct {
	Email                string `json:"email"                validate:"required,email,max=255"`
	Password             string `json:"password"             validate:"required,min=8,max=128"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password"`
	FirstName            string `json:"firstName"            validate:"required,min=1,max=100"`
	LastName             string `json:"lastName"             validate:"required,min=1,max=100"`
	MiddleName           string `json:"middleName"           validate:"omitempty,max=100"`
	DisplayName          string `json:"displayName"          validate:"omitempty,max=100"`
	Language             string `json:"language"             validate:"omitempty,max=16"`
	Role                 string `json:"role"                 validate:"omitempty,oneof=super_admin admin user"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		Profile:   u.Profile,
		CreatedAt: u.CreatedAt,
	}
}
