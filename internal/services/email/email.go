// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/config"
	"github.com/wneessen/go-mail"
)

// Event identifies a security-relevant MFA change.
type Event string

const (
	EventMFAEnabled             Event = "mfa_enabled"
	EventMFADisabled            Event = "mfa_disabled"
	EventBackupCodesRegenerated Event = "backup_codes_regenerated"
)

var notices = map[Event]struct {
	subject string
	body    string
}{
	EventMFAEnabled: {
		subject: "Two-factor authentication enabled",
		body:    "Two-factor authentication was enabled on your account at %s.",
	},
	EventMFADisabled: {
		subject: "Two-factor authentication disabled",
		body:    "Two-factor authentication was disabled on your account at %s.",
	},
	EventBackupCodesRegenerated: {
		subject: "New backup codes generated",
		body:    "New backup codes were generated for your account at %s. Your previous codes no longer work.",
	},
}

const footer = "\n\nIf this wasn't you, secure your account immediately: %s\n"

// Service sends security notices.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// SendSecurityNotice tells the account owner about an MFA change.
func (s *Service) SendSecurityNotice(ctx context.Context, to string, event Event, at time.Time) error {
	msg, err := s.buildMessage(to, event, at)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *Service) buildMessage(to string, event Event, at time.Time) (*mail.Msg, error) {
	notice, ok := notices[event]
	if !ok {
		return nil, fmt.Errorf("unknown security event %q", event)
	}

	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	body := fmt.Sprintf(notice.body, at.UTC().Format(time.RFC1123)) + fmt.Sprintf(footer, s.baseURL)

	msg.Subject(notice.subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, nil
}

// send delivers msg via SMTP using go-mail.
func (s *Service) send(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Configure TLS based on config and port
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
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

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
