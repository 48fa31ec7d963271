// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/mfa-guard/internal/appcontext"
	"codeberg.org/oliverandrich/mfa-guard/internal/auth"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/session"
	"github.com/labstack/echo/v4"
)

// StatusChecker reports whether a user has MFA enabled.
type StatusChecker interface {
	IsEnabled(ctx context.Context, userID string) (bool, error)
}

// SessionValidator checks an MFA session reference.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID, userID string, client mfa.ClientInfo) (bool, error)
}

// CookieEncoder re-issues the principal cookie.
type CookieEncoder interface {
	Encode(data *session.Data) (*http.Cookie, error)
}

// MFA builds the enforcing and non-enforcing MFA middleware.
type MFA struct {
	status   StatusChecker
	sessions SessionValidator
	cookies  CookieEncoder
}

// NewMFA creates the MFA middleware set.
func NewMFA(status StatusChecker, sessions SessionValidator, cookies CookieEncoder) *MFA {
	return &MFA{status: status, sessions: sessions, cookies: cookies}
}

// Require gates a route on a valid MFA session when the principal has MFA enabled.
func (m *MFA) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := appcontext.Wrap(c)
			principal := cc.Principal()
			if principal == nil {
				return auth.ErrUnauthorized
			}

			state, stale, err := m.check(cc)
			if err != nil {
				return err
			}

			switch {
			case !state.Enabled:
			case stale:
				slog.InfoContext(c.Request().Context(), "mfa_session_rejected", "user_id", principal.UserID)
				if err := m.clearReference(cc); err != nil {
					return err
				}
				return mfa.ErrSessionExpired
			case !state.Verified:
				return auth.ErrMFARequired
			}

			setState(cc, state)
			return next(cc)
		}
	}
}

// Load attaches the MFA state without rejecting the request.
func (m *MFA) Load() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := appcontext.Wrap(c)
			if cc.Principal() == nil {
				return next(cc)
			}

			state, stale, err := m.check(cc)
			if err != nil {
				return err
			}
			if stale {
				if err := m.clearReference(cc); err != nil {
					return err
				}
			}

			setState(cc, state)
			return next(cc)
		}
	}
}

// check resolves the MFA state. stale is true when a reference was
// presented but no longer validates.
func (m *MFA) check(cc *appcontext.Context) (auth.MFAState, bool, error) {
	ctx := cc.Request().Context()
	principal := cc.Principal()

	enabled, err := m.status.IsEnabled(ctx, principal.UserID)
	if err != nil {
		return auth.MFAState{}, false, fmt.Errorf("failed to load mfa status: %w", err)
	}
	if !enabled {
		return auth.MFAState{}, false, nil
	}

	sess := cc.Session()
	if sess == nil || sess.MFASessionID == "" {
		return auth.MFAState{Enabled: true}, false, nil
	}

	valid, err := m.sessions.Validate(ctx, sess.MFASessionID, principal.UserID, cc.Client())
	if err != nil {
		return auth.MFAState{}, false, err
	}
	return auth.MFAState{Enabled: true, Verified: valid}, !valid, nil
}

// clearReference drops the MFA session id from the cookie so the next
// attempt starts clean.
func (m *MFA) clearReference(cc *appcontext.Context) error {
	data := *cc.Session()
	data.MFASessionID = ""

	cookie, err := m.cookies.Encode(&data)
	if err != nil {
		return err
	}
	cc.SetCookie(cookie)

	ctx := auth.WithSession(cc.Request().Context(), &data)
	cc.SetRequest(cc.Request().WithContext(ctx))
	return nil
}

func setState(cc *appcontext.Context, state auth.MFAState) {
	ctx := auth.WithMFAState(cc.Request().Context(), state)
	cc.SetRequest(cc.Request().WithContext(ctx))
}
