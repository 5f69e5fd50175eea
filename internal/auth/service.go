// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
	"github.com/carterperez-dev/templates/go-auth-api/internal/mail"
	"github.com/carterperez-dev/templates/go-auth-api/internal/middleware"
	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNotAuthenticated      = core.ErrUnauthorized
	ErrExpiredOrInvalidToken = errors.New("recovery token expired or invalid")
	ErrNotificationFailed    = errors.New("notification delivery failed")
)

const tracerName = "github.com/carterperez-dev/templates/go-auth-api/internal/auth"

type Settings struct {
	AppName          string
	AppURL           string
	ResetTokenTTL    time.Duration
	ResetSubject     string
	RequireDelivery  bool
	ExposeResetToken bool
}

type Service struct {
	users    user.Repository
	registry *Registry
	jwt      *JWTManager
	mailer   mail.Transport
	settings Settings
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(
	users user.Repository,
	jwt *JWTManager,
	mailer mail.Transport,
	settings Settings,
	opts ...ServiceOption,
) *Service {
	if mailer == nil {
		mailer = mail.Noop{}
	}
	if settings.ResetTokenTTL <= 0 {
		settings.ResetTokenTTL = time.Hour
	}

	s := &Service{
		users:    users,
		registry: NewRegistry(users),
		jwt:      jwt,
		mailer:   mailer,
		settings: settings,
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type LoginResult struct {
	Payload user.LoginPayload
	Token   user.AuthToken
}

// Login checks the credentials and registers a freshly issued token on the
// account. Unknown email, wrong password and inactive accounts all come back as
// ErrInvalidCredentials.
func (s *Service) Login(
	ctx context.Context,
	email, password string,
) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	u, err := core.RetryTransientValue(ctx, func(ctx context.Context) (*user.User, error) {
		return s.users.GetByEmail(ctx, email)
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // keeps timing equal for unknown accounts
			_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
			span.AddEvent("login.rejected")
			return nil, ErrInvalidCredentials
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(password, &u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid || !u.IsActive() {
		span.AddEvent("login.rejected")
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		u.PasswordHash = newHash
		if err := s.users.SavePassword(ctx, u); err != nil {
			s.logger.Warn("password rehash failed", "user_id", u.ID, "error", err)
		}
	}

	now := s.now()
	payload := u.ToLoginPayload()

	token, err := s.jwt.Issue(payload, u.ID, now)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.registry.Register(ctx, u.ID, token, now); err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	span.AddEvent("login.succeeded", trace.WithAttributes(
		attribute.String("user.id", u.ID),
	))

	return &LoginResult{Payload: payload, Token: token}, nil
}

// Refresh rotates the presented token: a new one is issued and registered, then
// the presented one is revoked. If the revoke fails the new token is withdrawn
// again, so the caller never ends up with two live tokens from one refresh.
func (s *Service) Refresh(ctx context.Context, p *middleware.Principal) (*LoginResult, error) {
	if p == nil {
		return nil, fmt.Errorf("refresh: %w", ErrNotAuthenticated)
	}

	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	u, err := core.RetryTransientValue(ctx, func(ctx context.Context) (*user.User, error) {
		return s.users.GetByID(ctx, p.UserID)
	})
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("refresh: %w: %w", ErrNotAuthenticated, core.ErrTokenRevoked)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !u.IsActive() {
		return nil, fmt.Errorf("refresh: %w: %w", ErrNotAuthenticated, core.ErrTokenRevoked)
	}

	now := s.now()
	payload := u.ToLoginPayload()

	token, err := s.jwt.Issue(payload, u.ID, now)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.registry.Register(ctx, u.ID, token, now); err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	if err := s.registry.Revoke(ctx, u.ID, p.AccessToken); err != nil {
		if undoErr := s.registry.Revoke(ctx, u.ID, token.AccessToken); undoErr != nil {
			s.logger.Warn("withdrawing rotated token failed", "user_id", u.ID, "error", undoErr)
		}
		core.SetSpanError(ctx, err)
		return nil, err
	}

	span.AddEvent("token.rotated", trace.WithAttributes(
		attribute.String("user.id", u.ID),
	))
	return &LoginResult{Payload: payload, Token: token}, nil
}

// Logout revokes only the token the caller presented. Repeating it is harmless.
func (s *Service) Logout(ctx context.Context, p *middleware.Principal) error {
	if p == nil {
		return fmt.Errorf("logout: %w", ErrNotAuthenticated)
	}

	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	err := s.registry.Revoke(ctx, p.UserID, p.AccessToken)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}

	span.AddEvent("logout")
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, p *middleware.Principal) error {
	if p == nil {
		return fmt.Errorf("logout all: %w", ErrNotAuthenticated)
	}

	ctx, span := s.tracer.Start(ctx, "auth.LogoutAll")
	defer span.End()

	err := s.registry.RevokeAll(ctx, p.UserID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}

	span.AddEvent("logout.all")
	return nil
}

// RevokeUserSessions ends every session of another account.
func (s *Service) RevokeUserSessions(ctx context.Context, userID string) error {
	return s.registry.RevokeAll(ctx, userID)
}

// Authorize turns a presented token into a principal. The signature and claims
// must verify and the token must still be registered on an active account, so
// a revoked token fails even while its signature is good.
func (s *Service) Authorize(ctx context.Context, rawToken string) (*middleware.Principal, error) {
	claims, err := s.jwt.Verify(rawToken)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w: %w", ErrNotAuthenticated, err)
	}

	u, active, err := s.registry.IsActive(ctx, claims.Subject, rawToken)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if !active {
		return nil, fmt.Errorf("authorize: %w: %w", ErrNotAuthenticated, core.ErrTokenRevoked)
	}

	return &middleware.Principal{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        u.Role,
		AccessToken: rawToken,
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

func (s *Service) Sessions(ctx context.Context, p *middleware.Principal) ([]SessionInfo, error) {
	if p == nil {
		return nil, fmt.Errorf("sessions: %w", ErrNotAuthenticated)
	}

	u, err := core.RetryTransientValue(ctx, func(ctx context.Context) (*user.User, error) {
		return s.users.GetByID(ctx, p.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	now := s.now()
	sessions := make([]SessionInfo, 0, len(u.Tokens))
	for _, t := range u.Tokens {
		if t.Expired(now) {
			continue
		}
		sessions = append(sessions, SessionInfo{
			ID:          sessionID(t.AccessToken),
			GeneratedAt: t.GeneratedAt,
			ExpiresAt:   t.ExpiresAt,
			Current:     t.AccessToken == p.AccessToken,
		})
	}

	return sessions, nil
}

// RevokeSession ends one of the caller's own sessions by its listed ID.
func (s *Service) RevokeSession(
	ctx context.Context,
	p *middleware.Principal,
	id string,
) error {
	if p == nil {
		return fmt.Errorf("revoke session: %w", ErrNotAuthenticated)
	}

	u, err := core.RetryTransientValue(ctx, func(ctx context.Context) (*user.User, error) {
		return s.users.GetByID(ctx, p.UserID)
	})
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	for _, t := range u.Tokens {
		if sessionID(t.AccessToken) == id {
			return s.registry.Revoke(ctx, p.UserID, t.AccessToken)
		}
	}

	return fmt.Errorf("revoke session: %w", core.ErrNotFound)
}

// ChangePassword keeps the caller's current session and ends all the others.
func (s *Service) ChangePassword(
	ctx context.Context,
	p *middleware.Principal,
	currentPassword, newPassword string,
) error {
	if p == nil {
		return fmt.Errorf("change password: %w", ErrNotAuthenticated)
	}

	ctx, span := s.tracer.Start(ctx, "auth.ChangePassword")
	defer span.End()

	u, err := core.RetryTransientValue(ctx, func(ctx context.Context) (*user.User, error) {
		return s.users.GetByID(ctx, p.UserID)
	})
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPassword(currentPassword, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return ErrInvalidCredentials
	}

	u.SetPassword(newPassword)
	if err := u.BeforeSave(); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	err = core.RetryTransient(ctx, func(ctx context.Context) error {
		return s.users.ChangePassword(ctx, u, p.AccessToken)
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	span.AddEvent("password.changed")
	return nil
}

func sessionID(accessToken string) string {
	return core.HashToken(accessToken)[:16]
}
