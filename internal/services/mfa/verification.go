// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package mfa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/recovery"
)

// VerifyResult is returned after a successful verification.
type VerifyResult struct {
	SessionID string
	ExpiresAt time.Time
}

// Verify checks code for userID and, on success, creates an MFA session bound
// to client. Every rejected code yields ErrInvalidCode.
func (s *Service) Verify(ctx context.Context, userID string, code Code, client ClientInfo) (*VerifyResult, error) {
	var result *VerifyResult
	err := s.check(ctx, userID, code, func(tx *repository.Repository) error {
		sess, err := s.sessions.create(ctx, tx, userID, client)
		if err != nil {
			return err
		}
		result = &VerifyResult{SessionID: sess.ID, ExpiresAt: sess.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("mfa_session_created", "user_id", userID, "method", code.Kind())
	return result, nil
}

// Confirm checks code for userID without creating a session. A backup code
// used here is consumed.
func (s *Service) Confirm(ctx context.Context, userID string, code Code) error {
	return s.check(ctx, userID, code, func(*repository.Repository) error { return nil })
}

// check dispatches on the code variant and runs onSuccess once the code has
// been accepted. For backup codes onSuccess runs in the transaction that
// consumes the code.
func (s *Service) check(ctx context.Context, userID string, code Code, onSuccess func(*repository.Repository) error) error {
	if userID == "" {
		return invalid("user_id", "is required")
	}

	var err error
	switch c := code.(type) {
	case TOTPCode:
		err = s.checkTOTP(ctx, userID, c, onSuccess)
	case BackupCode:
		err = s.checkBackupCode(ctx, userID, c, onSuccess)
	default:
		return invalid("code", "is not a supported code")
	}

	if errors.Is(err, ErrInvalidCode) {
		slog.Warn("mfa_verify_failed", "user_id", userID, "method", code.Kind())
	}
	return err
}

func (s *Service) checkTOTP(ctx context.Context, userID string, code TOTPCode, onSuccess func(*repository.Repository) error) error {
	settings, err := s.enabledSettings(ctx, s.repo, userID)
	if err != nil {
		return err
	}

	secret, err := s.enc.Decrypt(*settings.SecretEncrypted)
	if err != nil {
		slog.Error("mfa_secret_decrypt_failed", "user_id", userID, "error", err)
		return fmt.Errorf("failed to read totp secret: %w", err)
	}

	valid, err := s.totp.Validate(code.Value, secret, s.now())
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidCode
	}

	return s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		// disable may have run since the settings were loaded
		if _, err := s.enabledSettings(ctx, tx, userID); err != nil {
			return err
		}
		return onSuccess(tx)
	})
}

// checkBackupCode scans the unused codes of userID in order and stops at the
// first bcrypt match. With at most ten codes the linear scan is fine and
// keeps each comparison constant time.
func (s *Service) checkBackupCode(ctx context.Context, userID string, code BackupCode, onSuccess func(*repository.Repository) error) error {
	if _, err := s.enabledSettings(ctx, s.repo, userID); err != nil {
		return err
	}
	if !recovery.ValidFormat(code.Value) {
		return ErrInvalidCode
	}

	codes, err := s.repo.GetUnusedBackupCodes(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load backup codes: %w", err)
	}

	var matchID int64
	for _, stored := range codes {
		if recovery.Matches(stored.CodeHash, code.Value) {
			matchID = stored.ID
			break
		}
	}
	if matchID == 0 {
		return ErrInvalidCode
	}

	now := s.now()
	return s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		consumed, err := tx.MarkBackupCodeUsed(ctx, matchID, now)
		if err != nil {
			return fmt.Errorf("failed to mark backup code used: %w", err)
		}
		if !consumed {
			// a concurrent request used it first
			return ErrInvalidCode
		}
		slog.Info("mfa_backup_code_used", "user_id", userID)
		return onSuccess(tx)
	})
}
