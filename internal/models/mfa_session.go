// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// MFASession records a completed second-factor verification. Rows are never
// updated after insert.
type MFASession struct { //nolint:govet // fieldalignment: readability over optimization
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Verified   bool      `db:"verified" json:"verified"`
	VerifiedAt time.Time `db:"verified_at" json:"verified_at"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
	IP         string    `db:"ip" json:"ip"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *MFASession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
