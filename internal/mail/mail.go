// AngelaMos | 2026
// mail.go

package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
)

var ErrNotConfigured = errors.New("mail transport not configured")

type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Noop is used when no provider is configured. Every send fails with
// ErrNotConfigured so callers can decide whether that matters.
type Noop struct{}

func (Noop) Send(context.Context, Message) error {
	return ErrNotConfigured
}

const (
	mailtrapHost = "sandbox.smtp.mailtrap.io"
	mailtrapPort = 2525
	sendGridHost = "smtp.sendgrid.net"
	sendGridPort = 587
	sendGridUser = "apikey"
)

// New picks a transport for cfg.Provider. Mailtrap and SendGrid are SMTP relays
// with known hosts, so they only need credentials.
func New(cfg config.MailConfig) (Transport, error) {
	switch cfg.Provider {
	case config.MailProviderNone:
		return Noop{}, nil
	case config.MailProviderSMTP:
		return NewSMTP(cfg)
	case config.MailProviderMailtrap:
		if cfg.Host == "" {
			cfg.Host = mailtrapHost
			cfg.Port = mailtrapPort
		}
		return NewSMTP(cfg)
	case config.MailProviderSendGrid:
		if cfg.Host == "" {
			cfg.Host = sendGridHost
			cfg.Port = sendGridPort
		}
		if cfg.Username == "" {
			cfg.Username = sendGridUser
		}
		return NewSMTP(cfg)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
