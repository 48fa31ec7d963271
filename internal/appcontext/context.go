// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context.
package appcontext

import (
	"codeberg.org/oliverandrich/mfa-guard/internal/auth"
	"codeberg.org/oliverandrich/mfa-guard/internal/models"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Context is a custom Echo context with typed accessors for the principal
// and MFA state. Values are read from the request context so middleware
// running after the wrap is still visible.
type Context struct {
	echo.Context
}

// Wrap returns c as a *Context, wrapping it if needed.
func Wrap(c echo.Context) *Context {
	if cc, ok := c.(*Context); ok {
		return cc
	}
	return &Context{Context: c}
}

// Principal returns the authenticated principal, or nil if not authenticated.
func (c *Context) Principal() *models.Principal {
	return auth.GetPrincipal(c.Request().Context())
}

// IsAuthenticated returns true if the principal is set.
func (c *Context) IsAuthenticated() bool {
	return c.Principal() != nil
}

// Session returns the decoded session cookie, or nil.
func (c *Context) Session() *session.Data {
	return auth.GetSession(c.Request().Context())
}

// MFA returns the MFA status loaded for this request.
func (c *Context) MFA() auth.MFAState {
	return auth.GetMFAState(c.Request().Context())
}

// Client returns the request attributes an MFA session is bound to.
func (c *Context) Client() mfa.ClientInfo {
	return mfa.ClientInfo{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
