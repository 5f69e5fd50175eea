// AngelaMos | 2026
// entity.go

package user

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
)

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Profile struct {
	DisplayName string `bson:"displayName" json:"displayName"`
	FirstName   string `bson:"firstName"   json:"firstName"`
	MiddleName  string `bson:"middleName"  json:"middleName,omitempty"`
	LastName    string `bson:"lastName"    json:"lastName"`
	Picture     string `bson:"picture"     json:"picture,omitempty"`
	Language    string `bson:"language"    json:"language,omitempty"`
}

func (p Profile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *Profile) Scan(src any) error {
	return scanJSON(src, p)
}

// AuthToken is one active session on an account.
type AuthToken struct {
	AccessToken string    `bson:"accessToken" json:"accessToken"`
	GeneratedAt time.Time `bson:"generatedAt" json:"generatedAt"`
	ExpiresAt   time.Time `bson:"expiresAt"   json:"expiresAt"`
}

func (t AuthToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type TokenList []AuthToken

func (l TokenList) Value() (driver.Value, error) {
	if l == nil {
		l = TokenList{}
	}
	return json.Marshal(l)
}

func (l *TokenList) Scan(src any) error {
	return scanJSON(src, l)
}

type User struct {
	ID                   string     `bson:"-"                    db:"id"`
	Email                string     `bson:"email"                db:"email"`
	PasswordHash         string     `bson:"passwordHash"         db:"password_hash"`
	Role                 string     `bson:"role"                 db:"role"`
	Status               string     `bson:"status"               db:"status"`
	Profile              Profile    `bson:"profile"              db:"profile"`
	Tokens               TokenList  `bson:"tokens"               db:"tokens"`
	PasswordResetToken   *string    `bson:"passwordResetToken"   db:"password_reset_token"`
	PasswordResetExpires *time.Time `bson:"passwordResetExpires" db:"password_reset_expires"`
	CreatedAt            time.Time  `bson:"createdAt"            db:"created_at"`
	UpdatedAt            time.Time  `bson:"updatedAt"            db:"updated_at"`

	plainPassword string
	passwordDirty bool
}

// SetPassword stages a new password. It is hashed by BeforeSave.
func (u *User) SetPassword(plain string) {
	u.plainPassword = plain
	u.passwordDirty = true
}

// BeforeSave runs on every write path that persists the account. The password
// is hashed only when it changed, so saving an untouched account keeps its digest.
func (u *User) BeforeSave() error {
	u.Email = NormalizeEmail(u.Email)

	if !u.passwordDirty {
		return nil
	}

	hash, err := core.HashPassword(u.plainPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u.PasswordHash = hash
	u.plainPassword = ""
	u.passwordDirty = false
	return nil
}

func (u *User) PasswordChanged() bool {
	return u.passwordDirty
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

func (u *User) HasToken(accessToken string) bool {
	for _, t := range u.Tokens {
		if t.AccessToken == accessToken {
			return true
		}
	}
	return false
}

// AddToken appends t unless an entry with the same access token exists.
func (u *User) AddToken(t AuthToken) bool {
	if u.HasToken(t.AccessToken) {
		return false
	}
	u.Tokens = append(u.Tokens, t)
	return true
}

func (u *User) RemoveToken(accessToken string) bool {
	for i, t := range u.Tokens {
		if t.AccessToken == accessToken {
			u.Tokens = append(u.Tokens[:i], u.Tokens[i+1:]...)
			return true
		}
	}
	return false
}

func (u *User) PruneExpired(now time.Time) {
	kept := u.Tokens[:0]
	for _, t := range u.Tokens {
		if !t.Expired(now) {
			kept = append(kept, t)
		}
	}
	u.Tokens = kept
}

func (u *User) ClearReset() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
}

// LoginPayload is what a token carries and what clients get back.
type LoginPayload struct {
	Email   string  `json:"email"`
	Profile Profile `json:"profile"`
	Role    string  `json:"role"`
}

func (u *User) ToLoginPayload() LoginPayload {
	return LoginPayload{
		Email:   u.Email,
		Profile: u.Profile,
		Role:    u.Role,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

func hashForSave(plain string) (string, error) {
	u := &User{}
	u.SetPassword(plain)
	if err := u.BeforeSave(); err != nil {
		return "", err
	}
	return u.PasswordHash, nil
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("scan json: unsupported type %T", src)
	}
}
