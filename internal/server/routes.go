// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/mfa-guard/internal/config"
	"codeberg.org/oliverandrich/mfa-guard/internal/handlers"
	mw "codeberg.org/oliverandrich/mfa-guard/internal/middleware"
	"codeberg.org/oliverandrich/mfa-guard/internal/ratelimit"
	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Deps are the services the HTTP layer is built from.
type Deps struct {
	Repo     *repository.Repository
	MFA      *mfa.Service
	Cookies  *session.Manager
	Limiter  *ratelimit.Limiter
	Notifier handlers.Notifier // nil disables security notices
}

// New builds the echo instance with middleware and routes.
func New(cfg *config.Config, deps Deps) (*echo.Echo, *handlers.Handlers) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	setupMiddleware(e, cfg)

	h := handlers.New(deps.Repo, deps.MFA, deps.Cookies, deps.Notifier)
	setupRoutes(e, h, deps)

	return e, h
}

func setupRoutes(e *echo.Echo, h *handlers.Handlers, deps Deps) {
	enforce := mw.NewMFA(deps.MFA, deps.MFA.Sessions(), deps.Cookies)
	limit := func(p ratelimit.Policy, key mw.KeyFunc) echo.MiddlewareFunc {
		return mw.RateLimit(deps.Limiter, p, key)
	}

	e.GET("/health", h.Health)

	api := e.Group("/api", mw.LoadSession(deps.Cookies))
	api.GET("/me", h.Me, mw.RequireAuth, enforce.Load())
	api.GET("/protected/ping", h.Ping, enforce.Require())

	g := api.Group("/mfa", limit(ratelimit.General, mw.ByIP), mw.RequireAuth)
	g.GET("/status", h.Status)
	g.GET("/backup-codes/count", h.BackupCodeCount)

	// Once MFA is on, re-enrolling needs a verified MFA session.
	g.POST("/setup", h.Setup, enforce.Require(), limit(ratelimit.Enroll, mw.ByIPAndUser))
	g.POST("/enable", h.Enable, enforce.Require(), limit(ratelimit.Enroll, mw.ByIPAndUser))

	g.POST("/verify", h.Verify, limit(ratelimit.Verify, mw.ByIPAndUser))
	g.POST("/disable", h.Disable, limit(ratelimit.Verify, mw.ByIPAndUser))
	g.POST("/backup-codes/regenerate", h.RegenerateBackupCodes, limit(ratelimit.Regenerate, mw.ByUser))
}
