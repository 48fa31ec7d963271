// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/models"
)

const settingsColumns = `user_id, enabled, secret_encrypted, backup_phone, sms_enabled, created_at, updated_at`

// GetMFASettings returns the settings row of a user or ErrNotFound.
func (r *Repository) GetMFASettings(ctx context.Context, userID string) (*models.MFASettings, error) {
	var s models.MFASettings
	err := r.q.GetContext(ctx, &s, `SELECT `+settingsColumns+` FROM mfa_settings WHERE user_id = ?`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &s, nil
}

// UpsertMFASettings creates or overwrites the settings row of s.UserID.
// CreatedAt is kept when the row already exists.
func (r *Repository) UpsertMFASettings(ctx context.Context, s *models.MFASettings) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mfa_settings (`+settingsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			enabled = excluded.enabled,
			secret_encrypted = excluded.secret_encrypted,
			backup_phone = excluded.backup_phone,
			sms_enabled = excluded.sms_enabled,
			updated_at = excluded.updated_at`,
		s.UserID, s.Enabled, s.SecretEncrypted, s.BackupPhone, s.SMSEnabled,
		s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	return err
}

// DisableMFASettings clears the secret and the enabled flag. A missing row is
// not an error.
func (r *Repository) DisableMFASettings(ctx context.Context, userID string, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE mfa_settings
		SET enabled = 0, secret_encrypted = NULL, sms_enabled = 0, updated_at = ?
		WHERE user_id = ?`,
		now.UTC(), userID)
	return err
}

// IsMFAEnabled reports whether MFA is enabled for a user.
func (r *Repository) IsMFAEnabled(ctx context.Context, userID string) (bool, error) {
	var enabled bool
	err := r.q.GetContext(ctx, &enabled,
		`SELECT EXISTS(SELECT 1 FROM mfa_settings WHERE user_id = ? AND enabled = 1)`, userID)
	return enabled, err
}
