// AngelaMos | 2026
// registry.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

// Registry tracks which issued tokens are still live on an account. Each call
// is one atomic store update, retried only on transient store errors.
type Registry struct {
	users user.Repository
}

func NewRegistry(users user.Repository) *Registry {
	return &Registry{users: users}
}

func (r *Registry) Register(
	ctx context.Context,
	userID string,
	token user.AuthToken,
	now time.Time,
) error {
	err := core.RetryTransient(ctx, func(ctx context.Context) error {
		return r.users.PushToken(ctx, userID, token, now)
	})
	if err != nil {
		return fmt.Errorf("register token: %w", err)
	}

	core.AddSpanEvent(ctx, "token.registered", attribute.String("user.id", userID))
	return nil
}

// Revoke removes one token. Revoking a token that is already gone is a no-op.
func (r *Registry) Revoke(ctx context.Context, userID, accessToken string) error {
	err := core.RetryTransient(ctx, func(ctx context.Context) error {
		return r.users.PullToken(ctx, userID, accessToken)
	})
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	core.AddSpanEvent(ctx, "token.revoked", attribute.String("user.id", userID))
	return nil
}

func (r *Registry) RevokeAll(ctx context.Context, userID string) error {
	return r.RevokeAllExcept(ctx, userID, "")
}

func (r *Registry) RevokeAllExcept(ctx context.Context, userID, keep string) error {
	err := core.RetryTransient(ctx, func(ctx context.Context) error {
		return r.users.PullAllTokens(ctx, userID, keep)
	})
	if err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}
	return nil
}

// IsActive reports whether accessToken is listed on an active account. A
// missing account or token is (nil, false, nil); only store failures are errors.
func (r *Registry) IsActive(
	ctx context.Context,
	userID, accessToken string,
) (*user.User, bool, error) {
	u, err := core.RetryTransientValue(ctx, func(ctx context.Context) (*user.User, error) {
		return r.users.FindByToken(ctx, userID, accessToken)
	})
	if errors.Is(err, core.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("check token: %w", err)
	}

	if !u.IsActive() {
		return nil, false, nil
	}
	return u, true, nil
}
