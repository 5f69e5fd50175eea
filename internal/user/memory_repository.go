// AngelaMos | 2026
// memory_repository.go

package user

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
)

// MemoryRepository keeps accounts in process. Each method holds the lock for its
// whole update, which gives it the same atomicity as the database drivers.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *User) error {
	if err := user.BeforeSave(); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	}

	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Tokens == nil {
		user.Tokens = TokenList{}
	}

	r.byID[user.ID] = cloneUser(user)
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryRepository) PushToken(
	_ context.Context,
	id string,
	token AuthToken,
	now time.Time,
) error {
	return r.update("push token", id, func(u *User) {
		u.PruneExpired(now)
		u.RemoveToken(token.AccessToken)
		u.AddToken(token)
		u.UpdatedAt = now
	})
}

func (r *MemoryRepository) PullToken(_ context.Context, id, accessToken string) error {
	return r.update("pull token", id, func(u *User) {
		u.RemoveToken(accessToken)
		u.UpdatedAt = time.Now().UTC()
	})
}

func (r *MemoryRepository) PullAllTokens(_ context.Context, id, keep string) error {
	return r.update("pull all tokens", id, func(u *User) {
		keepOnly(u, keep)
		u.UpdatedAt = time.Now().UTC()
	})
}

func (r *MemoryRepository) FindByToken(
	_ context.Context,
	id, accessToken string,
) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok || !u.HasToken(accessToken) {
		return nil, fmt.Errorf("find by token: %w", core.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) SavePassword(_ context.Context, user *User) error {
	if err := user.BeforeSave(); err != nil {
		return fmt.Errorf("save password: %w", err)
	}

	return r.update("save password", user.ID, func(u *User) {
		u.PasswordHash = user.PasswordHash
		u.UpdatedAt = time.Now().UTC()
	})
}

func (r *MemoryRepository) ChangePassword(_ context.Context, user *User, keep string) error {
	if err := user.BeforeSave(); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return r.update("change password", user.ID, func(u *User) {
		u.PasswordHash = user.PasswordHash
		keepOnly(u, keep)
		u.UpdatedAt = time.Now().UTC()
	})
}

func (r *MemoryRepository) SetResetToken(
	_ context.Context,
	email, digest string,
	expires time.Time,
) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("set reset token: %w", core.ErrNotFound)
	}

	u := r.byID[id]
	u.PasswordResetToken = &digest
	u.PasswordResetExpires = &expires
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (r *MemoryRepository) ConsumeResetToken(
	_ context.Context,
	digest string,
	now time.Time,
	newPassword string,
) (*User, error) {
	hash, err := hashForSave(newPassword)
	if err != nil {
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.PasswordResetToken == nil || u.PasswordResetExpires == nil {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(digest), []byte(*u.PasswordResetToken)) != 1 {
			continue
		}
		if !now.Before(*u.PasswordResetExpires) {
			continue
		}

		u.PasswordHash = hash
		u.ClearReset()
		u.Tokens = TokenList{}
		u.UpdatedAt = now
		return cloneUser(u), nil
	}

	return nil, fmt.Errorf("consume reset token: %w", core.ErrNotFound)
}

func (r *MemoryRepository) Stats(_ context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{ByRole: make(map[string]int64)}
	for _, u := range r.byID {
		stats.Total++
		if u.IsActive() {
			stats.Active++
		}
		stats.ByRole[u.Role]++
	}
	return stats, nil
}

func (r *MemoryRepository) Ping(_ context.Context) error {
	return nil
}

func (r *MemoryRepository) update(op, id string, fn func(u *User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	fn(u)
	return nil
}

func keepOnly(u *User, keep string) {
	kept := TokenList{}
	for _, t := range u.Tokens {
		if keep != "" && t.AccessToken == keep {
			kept = append(kept, t)
		}
	}
	u.Tokens = kept
}

func cloneUser(u *User) *User {
	c := *u
	c.Tokens = append(TokenList{}, u.Tokens...)
	if u.PasswordResetToken != nil {
		tok := *u.PasswordResetToken
		c.PasswordResetToken = &tok
	}
	if u.PasswordResetExpires != nil {
		exp := *u.PasswordResetExpires
		c.PasswordResetExpires = &exp
	}
	c.plainPassword = ""
	c.passwordDirty = false
	return &c
}

var _ Repository = (*MemoryRepository)(nil)
