// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware provides the echo middleware guarding the MFA API.
package middleware

import (
	"net/http"

	"codeberg.org/oliverandrich/mfa-guard/internal/auth"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/session"
	"github.com/labstack/echo/v4"
)

// SessionParser decodes the principal cookie.
type SessionParser interface {
	Parse(r *http.Request) (*session.Data, error)
}

// LoadSession attaches the principal from the session cookie, if any.
func LoadSession(sessions SessionParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			data, err := sessions.Parse(c.Request())
			if err != nil {
				return err
			}
			if data != nil {
				ctx := auth.WithSession(c.Request().Context(), data)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// RequireAuth rejects requests without a principal.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !auth.IsAuthenticated(c.Request().Context()) {
			return auth.ErrUnauthorized
		}
		return next(c)
	}
}
