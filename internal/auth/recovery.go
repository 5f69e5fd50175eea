// AngelaMos | 2026
// recovery.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
	"github.com/carterperez-dev/templates/go-auth-api/internal/mail"
	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

// RequestReset stores a new recovery token for email, replacing any earlier
// one, and mails the link. An unknown email returns ("", nil) with nothing
// written. The raw token is returned for the caller to expose in test setups.
//
// The token is committed before the mail goes out and a failed send never
// undoes it. The failure is reported only when delivery is required.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "auth.RequestReset")
	defer span.End()

	raw, err := core.GenerateRecoveryToken()
	if err != nil {
		return "", fmt.Errorf("request reset: %w", err)
	}

	expires := s.now().Add(s.settings.ResetTokenTTL)
	digest := core.HashToken(raw)

	u, err := core.RetryTransientValue(ctx, func(ctx context.Context) (*user.User, error) {
		return s.users.SetResetToken(ctx, email, digest, expires)
	})
	if errors.Is(err, core.ErrNotFound) {
		span.AddEvent("reset.unknown_email")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("request reset: %w", err)
	}

	span.AddEvent("reset.token_stored")

	if err := s.sendRecovery(ctx, u, raw); err != nil {
		// With no provider configured this is expected on every request.
		level := slog.LevelError
		if errors.Is(err, mail.ErrNotConfigured) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "recovery email not delivered",
			"user_id", u.ID,
			"error", err,
		)
		if s.settings.RequireDelivery {
			return raw, fmt.Errorf("%w: %w", ErrNotificationFailed, err)
		}
	}

	return raw, nil
}

// PerformReset consumes token and sets newPassword in one conditional update.
// The token must match and be strictly before its expiry. Every session on the
// account ends with it.
func (s *Service) PerformReset(ctx context.Context, token, newPassword string) error {
	ctx, span := s.tracer.Start(ctx, "auth.PerformReset")
	defer span.End()

	if token == "" {
		return ErrExpiredOrInvalidToken
	}

	digest := core.HashToken(token)
	now := s.now()

	_, err := core.RetryWriteValue(ctx, func(ctx context.Context) (*user.User, error) {
		return s.users.ConsumeResetToken(ctx, digest, now, newPassword)
	})
	if errors.Is(err, core.ErrNotFound) {
		span.AddEvent("reset.rejected")
		return ErrExpiredOrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("perform reset: %w", err)
	}

	span.AddEvent("reset.completed")
	return nil
}

func (s *Service) sendRecovery(ctx context.Context, u *user.User, raw string) error {
	msg, err := mail.BuildRecoveryMessage(u.Email, s.settings.ResetSubject, mail.RecoveryData{
		AppName:   s.settings.AppName,
		Name:      u.Profile.DisplayName,
		Link:      mail.RecoveryLink(s.settings.AppURL, raw),
		ExpiresIn: s.settings.ResetTokenTTL.String(),
	})
	if err != nil {
		return err
	}

	return s.mailer.Send(ctx, msg)
}
