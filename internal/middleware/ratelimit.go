// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"errors"
	"log/slog"

	"codeberg.org/oliverandrich/mfa-guard/internal/auth"
	"codeberg.org/oliverandrich/mfa-guard/internal/ratelimit"
	"github.com/labstack/echo/v4"
)

// KeyFunc derives the limiter key for a request. ok is false when the
// request carries nothing to key on.
type KeyFunc func(c echo.Context) (key string, ok bool)

// ByIP keys on the client address.
func ByIP(c echo.Context) (string, bool) {
	return c.RealIP(), true
}

// ByIPAndUser keys on the client address and the principal.
func ByIPAndUser(c echo.Context) (string, bool) {
	p := auth.GetPrincipal(c.Request().Context())
	if p == nil {
		return "", false
	}
	return ratelimit.Key(c.RealIP(), p.UserID), true
}

// ByUser keys on the principal only.
func ByUser(c echo.Context) (string, bool) {
	p := auth.GetPrincipal(c.Request().Context())
	if p == nil {
		return "", false
	}
	return p.UserID, true
}

// RateLimit rejects requests once policy's window is full for the key.
// Store failures reject the request as well.
func RateLimit(limiter *ratelimit.Limiter, policy ratelimit.Policy, keyFn KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, ok := keyFn(c)
			if !ok {
				return auth.ErrUnauthorized
			}

			if _, err := limiter.Allow(c.Request().Context(), policy, key); err != nil {
				if errors.Is(err, ratelimit.ErrRateLimited) {
					slog.WarnContext(c.Request().Context(), "rate_limited",
						"policy", policy.Name,
						"ip", c.RealIP(),
					)
				}
				return err
			}
			return next(c)
		}
	}
}
