// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"time"
)

// Repository is the credential store. Every mutating method is a single
// atomic update in the backing store; none of them read, modify and write back.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// PushToken adds token to the account unless it is already listed and drops
	// entries that expired before now.
	PushToken(ctx context.Context, id string, token AuthToken, now time.Time) error
	// PullToken removes the entry for accessToken. A missing entry is not an error.
	PullToken(ctx context.Context, id, accessToken string) error
	// PullAllTokens removes every entry except keep, which may be empty.
	PullAllTokens(ctx context.Context, id, keep string) error
	// FindByToken returns the account only when accessToken is listed on it.
	FindByToken(ctx context.Context, id, accessToken string) (*User, error)

	SavePassword(ctx context.Context, user *User) error
	// ChangePassword persists the staged password and drops every session
	// except keep in the same update.
	ChangePassword(ctx context.Context, user *User, keep string) error
	// SetResetToken stores digest and expires together on the account with the
	// given email and returns the updated account.
	SetResetToken(
		ctx context.Context,
		email, digest string,
		expires time.Time,
	) (*User, error)
	// ConsumeResetToken matches digest with an expiry after now, sets the new
	// password, clears both reset fields and drops every session.
	ConsumeResetToken(
		ctx context.Context,
		digest string,
		now time.Time,
		newPassword string,
	) (*User, error)

	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}

type Stats struct {
	Total  int64            `json:"total"`
	Active int64            `json:"active"`
	ByRole map[string]int64 `json:"byRole"`
}
