// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
)

type Service struct {
	repo     Repository
	sanitize *bluemonday.Policy
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		sanitize: bluemonday.StrictPolicy(),
	}
}

// CanCreate reports whether a caller with actorRole may create an account with
// targetRole. An empty actorRole is an anonymous caller.
func CanCreate(actorRole, targetRole string) bool {
	switch actorRole {
	case RoleSuperAdmin:
		return ValidRole(targetRole)
	case RoleAdmin:
		return targetRole == RoleUser || targetRole == RoleAdmin
	default:
		return targetRole == RoleUser
	}
}

func (s *Service) Register(
	ctx context.Context,
	actorRole string,
	req RegisterRequest,
) (*User, error) {
	role := req.Role
	if role == "" {
		role = RoleUser
	}

	if !CanCreate(actorRole, role) {
		return nil, fmt.Errorf("register %s account: %w", role, core.ErrForbidden)
	}

	u := &User{
		Email:  req.Email,
		Role:   role,
		Status: StatusActive,
		Profile: s.cleanProfile(Profile{
			DisplayName: req.DisplayName,
			FirstName:   req.FirstName,
			MiddleName:  req.MiddleName,
			LastName:    req.LastName,
			Language:    req.Language,
		}),
		Tokens: TokenList{},
	}
	u.SetPassword(req.Password)

	// Hash once up front so a retried insert does not hash again.
	if err := u.BeforeSave(); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	err := core.RetryWrite(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) Me(ctx context.Context, userID string) (*LoginPayload, error) {
	if userID == "" {
		return nil, fmt.Errorf("me: %w", core.ErrUnauthorized)
	}

	u, err := core.RetryTransientValue(ctx, func(ctx context.Context) (*User, error) {
		return s.repo.GetByID(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	payload := u.ToLoginPayload()
	return &payload, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) cleanProfile(p Profile) Profile {
	clean := func(v string) string {
		return strings.TrimSpace(s.sanitize.Sanitize(v))
	}

	p.DisplayName = clean(p.DisplayName)
	p.FirstName = clean(p.FirstName)
	p.MiddleName = clean(p.MiddleName)
	p.LastName = clean(p.LastName)
	p.Language = clean(p.Language)

	if p.DisplayName == "" {
		p.DisplayName = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	return p
}
