// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/models"
)

// CreateBackupCodes inserts one row per hash for a user.
func (r *Repository) CreateBackupCodes(ctx context.Context, userID string, codeHashes []string, now time.Time) error {
	for _, hash := range codeHashes {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO mfa_backup_codes (user_id, code_hash, used, created_at) VALUES (?, ?, 0, ?)`,
			userID, hash, now.UTC())
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplaceBackupCodes deletes every existing code of a user, used or not, and
// inserts the new batch. Call it inside WithTx.
func (r *Repository) ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string, now time.Time) error {
	if err := r.DeleteBackupCodes(ctx, userID); err != nil {
		return err
	}
	return r.CreateBackupCodes(ctx, userID, codeHashes, now)
}

// GetUnusedBackupCodes retrieves the unused codes of a user in insert order.
func (r *Repository) GetUnusedBackupCodes(ctx context.Context, userID string) ([]models.BackupCode, error) {
	var codes []models.BackupCode
	err := r.q.SelectContext(ctx, &codes, `
		SELECT id, user_id, code_hash, used, used_at, created_at
		FROM mfa_backup_codes
		WHERE user_id = ? AND used = 0
		ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// CountUnusedBackupCodes returns the number of unused codes of a user.
func (r *Repository) CountUnusedBackupCodes(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.q.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM mfa_backup_codes WHERE user_id = ? AND used = 0`, userID)
	return count, err
}

// MarkBackupCodeUsed flips a code from unused to used. It reports false when
// the code was already used, so a code is consumed at most once.
func (r *Repository) MarkBackupCodeUsed(ctx context.Context, codeID int64, now time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE mfa_backup_codes SET used = 1, used_at = ? WHERE id = ? AND used = 0`,
		now.UTC(), codeID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteBackupCodes deletes all backup codes for a user.
func (r *Repository) DeleteBackupCodes(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = ?`, userID)
	return err
}
