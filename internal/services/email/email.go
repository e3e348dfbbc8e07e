// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers one-time login codes.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"codeberg.org/oliverandrich/schoolhub/internal/config"
	"codeberg.org/oliverandrich/schoolhub/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Dispatcher delivers a login code to an email address.
type Dispatcher interface {
	SendCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// Service sends login codes through an SMTP relay.
type Service struct {
	cfg *config.SMTPConfig
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig) (*Service, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("SMTP from address is required")
	}
	return &Service{cfg: cfg}, nil
}

// SendCode mails the code to the recipient. The message is localised with
// the locale stored in ctx.
func (s *Service) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	subject, body := renderCode(ctx, code, ttl)
	return s.send(ctx, to, subject, body)
}

func renderCode(ctx context.Context, code string, ttl time.Duration) (string, string) {
	subject := i18n.T(ctx, "email_otp_subject")
	body := i18n.TData(ctx, "email_otp_body", map[string]any{
		"Code":    code,
		"Minutes": int(math.Ceil(ttl.Minutes())),
	})
	return subject, body
}

func (s *Service) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("setting from address: %w", err)
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(10 * time.Second),
	}

	// Port 465 is implicit TLS, every other port negotiates STARTTLS.
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// LogDispatcher writes codes to the log instead of mailing them. It is used
// in dev mode when no SMTP host is configured.
type LogDispatcher struct {
	Logger *slog.Logger
}

// SendCode logs the rendered code.
func (d LogDispatcher) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	subject, _ := renderCode(ctx, code, ttl)
	logger.InfoContext(ctx, "otp_dev_delivery", "to", to, "subject", subject, "code", code, "ttl", ttl)
	return nil
}
