// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/models"
	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"github.com/google/uuid"
)

// SessionTTL is the fixed lifetime of an MFA session. Sessions are never extended.
const SessionTTL = 10 * time.Minute

// maxUserAgentLength caps stored user agents.
const maxUserAgentLength = 512

// ClientInfo is the request context a session is bound to.
type ClientInfo struct {
	IP        string
	UserAgent string
}

func (c ClientInfo) normalize() ClientInfo {
	if len(c.UserAgent) > maxUserAgentLength {
		c.UserAgent = c.UserAgent[:maxUserAgentLength]
	}
	return c
}

// Sessions issues and validates MFA sessions.
type Sessions struct {
	repo *repository.Repository
	now  func() time.Time
}

// NewSessions creates the session service. A nil now uses time.Now.
func NewSessions(repo *repository.Repository, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{repo: repo, now: now}
}

// Create stores a verified session for userID bound to client.
func (s *Sessions) Create(ctx context.Context, userID string, client ClientInfo) (*models.MFASession, error) {
	return s.create(ctx, s.repo, userID, client)
}

func (s *Sessions) create(ctx context.Context, repo *repository.Repository, userID string, client ClientInfo) (*models.MFASession, error) {
	client = client.normalize()
	now := s.now().UTC()
	sess := &models.MFASession{
		ID:         uuid.NewString(),
		UserID:     userID,
		Verified:   true,
		VerifiedAt: now,
		ExpiresAt:  now.Add(SessionTTL),
		IP:         client.IP,
		UserAgent:  client.UserAgent,
		CreatedAt:  now,
	}
	if err := repo.CreateMFASession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create mfa session: %w", err)
	}
	return sess, nil
}

// Validate reports whether sessionID is a live session of userID for client.
// A session fails when it is unknown, unverified, expired, or when a recorded
// IP or user agent differs from the presented one. The error is reserved for
// store failures.
func (s *Sessions) Validate(ctx context.Context, sessionID, userID string, client ClientInfo) (bool, error) {
	if sessionID == "" || userID == "" {
		return false, nil
	}

	sess, err := s.repo.GetMFASession(ctx, sessionID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load mfa session: %w", err)
	}

	client = client.normalize()
	switch {
	case !sess.Verified:
		return false, nil
	case sess.Expired(s.now()):
		return false, nil
	case sess.IP != "" && sess.IP != client.IP:
		return false, nil
	case sess.UserAgent != "" && sess.UserAgent != client.UserAgent:
		return false, nil
	}
	return true, nil
}

// Sweep deletes expired session rows.
func (s *Sessions) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredMFASessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep mfa sessions: %w", err)
	}
	return n, nil
}
