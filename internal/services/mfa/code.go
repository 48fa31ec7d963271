// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package mfa

import (
	"strings"

	"codeberg.org/oliverandrich/mfa-guard/internal/services/recovery"
)

// maxCodeLength bounds presented codes before any hashing happens.
const maxCodeLength = 32

// Code is a presented second-factor code. It is either a TOTPCode or a
// BackupCode and is built once by ParseCode.
type Code interface {
	isCode()
	// Kind names the variant for logging.
	Kind() string
}

// TOTPCode is a time-based one-time password.
type TOTPCode struct {
	Value string
}

// BackupCode is a single-use backup code.
type BackupCode struct {
	Value string
}

func (TOTPCode) isCode()   {}
func (BackupCode) isCode() {}

// Kind implements Code.
func (TOTPCode) Kind() string { return "totp" }

// Kind implements Code.
func (BackupCode) Kind() string { return "backup_code" }

// ParseCode classifies raw input. Input containing the backup code separator
// is a BackupCode; everything else is a TOTPCode.
func ParseCode(raw string) (Code, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return nil, invalid("code", "is required")
	case len(raw) > maxCodeLength:
		return nil, invalid("code", "is too long")
	case strings.Contains(raw, recovery.Separator):
		return BackupCode{Value: raw}, nil
	default:
		return TOTPCode{Value: normalizeTOTP(raw)}, nil
	}
}

// normalizeTOTP drops the spaces authenticator apps insert for readability.
func normalizeTOTP(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
}
