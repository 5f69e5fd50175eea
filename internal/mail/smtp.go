// AngelaMos | 2026
// smtp.go

package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
)

type SMTP struct {
	host      string
	opts      []gomail.Option
	fromEmail string
	fromName  string
}

func NewSMTP(cfg config.MailConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp: host is required")
	}

	opts := []gomail.Option{gomail.WithPort(cfg.Port)}

	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}

	if cfg.TLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}

	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	return &SMTP{
		host:      cfg.Host,
		opts:      opts,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.host, s.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTP) build(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()

	if err := m.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}

	if msg.ToName != "" {
		if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
			return nil, fmt.Errorf("smtp to: %w", err)
		}
	} else if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}

	return m, nil
}
