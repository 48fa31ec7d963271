// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/models"
)

// CreateMFASession inserts a session row.
func (r *Repository) CreateMFASession(ctx context.Context, s *models.MFASession) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mfa_sessions (id, user_id, verified, verified_at, expires_at, ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Verified, s.VerifiedAt.UTC(), s.ExpiresAt.UTC(), s.IP, s.UserAgent, s.CreatedAt.UTC())
	return err
}

// GetMFASession returns the session with the given id owned by userID, or
// ErrNotFound.
func (r *Repository) GetMFASession(ctx context.Context, id, userID string) (*models.MFASession, error) {
	var s models.MFASession
	err := r.q.GetContext(ctx, &s, `
		SELECT id, user_id, verified, verified_at, expires_at, ip, user_agent, created_at
		FROM mfa_sessions
		WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &s, nil
}

// DeleteMFASessionsForUser removes every session of a user.
func (r *Repository) DeleteMFASessionsForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredMFASessions removes sessions whose expiry is at or before now.
func (r *Repository) DeleteExpiredMFASessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
