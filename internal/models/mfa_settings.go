// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package models contains the persisted MFA row types.
package models

import "time"

// MFASettings holds the second-factor configuration of one user.
// SecretEncrypted is set whenever Enabled is true.
type MFASettings struct { //nolint:govet // fieldalignment: readability over optimization
	UserID          string    `db:"user_id" json:"user_id"`
	Enabled         bool      `db:"enabled" json:"enabled"`
	SecretEncrypted *string   `db:"secret_encrypted" json:"-"`
	BackupPhone     *string   `db:"backup_phone" json:"backup_phone,omitempty"`
	SMSEnabled      bool      `db:"sms_enabled" json:"sms_enabled"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// HasSecret reports whether an encrypted secret is stored.
func (s *MFASettings) HasSecret() bool {
	return s.SecretEncrypted != nil && *s.SecretEncrypted != ""
}
