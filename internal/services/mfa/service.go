// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package mfa implements second-factor enrollment, verification and session
// binding on top of the repository.
package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/models"
	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/encryption"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/recovery"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/totp"
)

// Options configures a Service.
type Options struct {
	// Issuer is shown by authenticator apps.
	Issuer string
	// Codes hashes backup codes. Defaults to recovery.NewService().
	Codes *recovery.Service
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service is the MFA entry point used by handlers and middleware.
type Service struct {
	repo     *repository.Repository
	enc      *encryption.Encryptor
	totp     *totp.Generator
	codes    *recovery.Service
	sessions *Sessions
	now      func() time.Time
}

// NewService creates a Service. The encryptor is mandatory; there is no
// fallback key.
func NewService(repo *repository.Repository, enc *encryption.Encryptor, opts Options) (*Service, error) {
	if enc == nil {
		return nil, ErrMissingEncryptor
	}
	if opts.Codes == nil {
		opts.Codes = recovery.NewService()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:     repo,
		enc:      enc,
		totp:     totp.New(opts.Issuer),
		codes:    opts.Codes,
		sessions: NewSessions(repo, opts.Now),
		now:      opts.Now,
	}, nil
}

// Sessions returns the session binding service.
func (s *Service) Sessions() *Sessions {
	return s.sessions
}

// Status summarizes the MFA configuration of a user.
type Status struct {
	Enabled              bool       `json:"enabled"`
	SMSEnabled           bool       `json:"sms_enabled"`
	BackupPhone          string     `json:"backup_phone,omitempty"`
	BackupCodesRemaining int64      `json:"backup_codes_remaining"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// Status returns the MFA status of userID. Users without a settings row are
// reported as disabled.
func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	settings, err := s.repo.GetMFASettings(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mfa settings: %w", err)
	}

	status := &Status{
		Enabled:    settings.Enabled,
		SMSEnabled: settings.SMSEnabled,
		UpdatedAt:  &settings.UpdatedAt,
	}
	if settings.BackupPhone != nil {
		status.BackupPhone = maskPhone(*settings.BackupPhone)
	}
	if settings.Enabled {
		if status.BackupCodesRemaining, err = s.repo.CountUnusedBackupCodes(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to count backup codes: %w", err)
		}
	}
	return status, nil
}

// IsEnabled reports whether MFA is enabled for userID.
func (s *Service) IsEnabled(ctx context.Context, userID string) (bool, error) {
	enabled, err := s.repo.IsMFAEnabled(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load mfa settings: %w", err)
	}
	return enabled, nil
}

// BackupCodeCount returns the number of unused backup codes of userID.
func (s *Service) BackupCodeCount(ctx context.Context, userID string) (int64, error) {
	if _, err := s.enabledSettings(ctx, s.repo, userID); err != nil {
		return 0, err
	}
	n, err := s.repo.CountUnusedBackupCodes(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count backup codes: %w", err)
	}
	return n, nil
}

// enabledSettings loads the settings of userID and fails with ErrNotEnabled
// unless MFA is enabled with a stored secret.
func (s *Service) enabledSettings(ctx context.Context, repo *repository.Repository, userID string) (*models.MFASettings, error) {
	settings, err := repo.GetMFASettings(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotEnabled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mfa settings: %w", err)
	}
	if !settings.Enabled || !settings.HasSecret() {
		return nil, ErrNotEnabled
	}
	return settings, nil
}

// maskPhone keeps the last two digits.
func maskPhone(phone string) string {
	if len(phone) <= 2 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-2 && phone[i] != '+' {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
