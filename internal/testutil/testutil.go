// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/config"
	"codeberg.org/oliverandrich/mfa-guard/internal/database"
	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/encryption"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/recovery"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/session"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/totp"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// EncryptionKey is a valid hex-encoded 32-byte key for tests.
const EncryptionKey = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

// SessionHashKey is a valid hex-encoded 32-byte cookie signing key for tests.
const SessionHashKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// FixedTime is a step-aligned reference time for deterministic tests.
var FixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock starting at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewTestEncryptor returns an encryptor keyed with EncryptionKey.
func NewTestEncryptor(t *testing.T) *encryption.Encryptor {
	t.Helper()
	enc, err := encryption.NewFromString(EncryptionKey)
	require.NoError(t, err)
	return enc
}

// NewTestMFAService creates an MFA service over a fresh database, driven by
// clock and using the minimum bcrypt cost.
func NewTestMFAService(t *testing.T, clock *Clock) (*mfa.Service, *repository.Repository) {
	t.Helper()
	_, repo := NewTestDB(t)
	svc, err := mfa.NewService(repo, NewTestEncryptor(t), mfa.Options{
		Issuer: "Test",
		Codes:  recovery.NewServiceWithCost(bcrypt.MinCost),
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return svc, repo
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewTestSessionManager creates a cookie manager driven by clock.
func NewTestSessionManager(t *testing.T, clock *Clock) *session.Manager {
	t.Helper()
	mgr, err := session.NewManager(&config.SessionConfig{
		CookieName: "_session",
		MaxAge:     3600,
		HashKey:    SessionHashKey,
	}, false)
	require.NoError(t, err)
	mgr.SetClock(clock.Now)
	return mgr
}

// TOTPCode returns the current code for secret at t.
func TOTPCode(tb testing.TB, secret string, t time.Time) string {
	tb.Helper()
	code, err := totp.New("").Code(secret, t)
	require.NoError(tb, err)
	return code
}

// WrongTOTPCode returns a well-formed code that is rejected for secret at t,
// accounting for the accepted drift window.
func WrongTOTPCode(tb testing.TB, secret string, t time.Time) string {
	tb.Helper()
	valid := make(map[string]bool)
	for step := -totp.Skew; step <= totp.Skew; step++ {
		valid[TOTPCode(tb, secret, t.Add(time.Duration(step)*totp.Period*time.Second))] = true
	}
	for d := '0'; d <= '9'; d++ {
		candidate := strings.Repeat(string(d), 6)
		if !valid[candidate] {
			return candidate
		}
	}
	tb.Fatal("no wrong code available")
	return ""
}
