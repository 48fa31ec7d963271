// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session encodes the principal cookie shared with the login application.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/config"
	"github.com/gorilla/securecookie"
)

const keySize = 32

// Data is the payload stored in the session cookie.
type Data struct {
	UserID       string
	Email        string
	MFASessionID string // empty until a code has been verified
	ExpiresAt    time.Time
}

// Manager signs and optionally encrypts session cookies.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
	now    func() time.Time
}

// NewManager builds a Manager from config. An empty hash key is replaced by
// a random one, which only makes sense when this process issues its own cookies.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		hashKey = make([]byte, keySize)
		if _, err := rand.Read(hashKey); err != nil {
			return nil, fmt.Errorf("generate session hash key: %w", err)
		}
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)

	return &Manager{
		codec:  codec,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: secure,
		now:    time.Now,
	}, nil
}

// SetClock overrides the time source used for expiry checks.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func decodeKey(value, name string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", name, err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid session %s key: must be 32 bytes, got %d", name, len(key))
	}
	return key, nil
}

// Create issues a fresh cookie for the principal with no MFA session.
func (m *Manager) Create(userID, email string) (*http.Cookie, error) {
	return m.Encode(&Data{
		UserID:    userID,
		Email:     email,
		ExpiresAt: m.now().Add(time.Duration(m.maxAge) * time.Second),
	})
}

// Encode re-issues a cookie carrying data, keeping its original expiry.
func (m *Manager) Encode(data *Data) (*http.Cookie, error) {
	if data == nil || data.UserID == "" {
		return nil, errors.New("session data requires a user id")
	}

	value, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	maxAge := int(math.Ceil(data.ExpiresAt.Sub(m.now()).Seconds()))
	if maxAge <= 0 {
		maxAge = -1
	}

	return m.cookie(value, maxAge), nil
}

// Parse returns the session data, or nil when the cookie is missing,
// invalid or expired.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return nil, nil //nolint:nilerr // a missing cookie is not an error
	}

	var data Data
	if err := m.codec.Decode(m.name, cookie.Value, &data); err != nil {
		return nil, nil //nolint:nilerr // invalid cookies are treated as anonymous
	}

	if data.UserID == "" || !m.now().Before(data.ExpiresAt) {
		return nil, nil
	}

	return &data, nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
