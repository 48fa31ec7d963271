// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// BackupCode stores a bcrypt-hashed single-use backup code.
type BackupCode struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64      `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	CodeHash  string     `db:"code_hash" json:"-"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
