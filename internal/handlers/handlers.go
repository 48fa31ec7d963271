// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/appcontext"
	"codeberg.org/oliverandrich/mfa-guard/internal/auth"
	"codeberg.org/oliverandrich/mfa-guard/internal/models"
	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/email"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/session"
	"github.com/labstack/echo/v4"
)

const noticeTimeout = 30 * time.Second

// Notifier sends security notices to the account owner.
type Notifier interface {
	SendSecurityNotice(ctx context.Context, to string, event email.Event, at time.Time) error
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo     *repository.Repository
	mfa      *mfa.Service
	cookies  *session.Manager
	notifier Notifier
	now      func() time.Time
	wg       sync.WaitGroup
}

// New creates a new Handlers instance. notifier may be nil.
func New(repo *repository.Repository, svc *mfa.Service, cookies *session.Manager, notifier Notifier) *Handlers {
	return &Handlers{
		repo:     repo,
		mfa:      svc,
		cookies:  cookies,
		notifier: notifier,
		now:      time.Now,
	}
}

// Wait blocks until pending notices have been sent.
func (h *Handlers) Wait() {
	h.wg.Wait()
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if h.repo != nil {
		if err := h.repo.DB().PingContext(c.Request().Context()); err != nil {
			slog.ErrorContext(c.Request().Context(), "health check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Me returns the principal and its MFA state without enforcing MFA.
func (h *Handlers) Me(c echo.Context) error {
	cc := appcontext.Wrap(c)
	p, err := principal(cc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, struct {
		UserID string        `json:"user_id"`
		MFA    auth.MFAState `json:"mfa"`
	}{UserID: p.UserID, MFA: cc.MFA()})
}

// Ping is a sample route behind the MFA enforcement middleware.
func (h *Handlers) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func principal(cc *appcontext.Context) (*models.Principal, error) {
	p := cc.Principal()
	if p == nil {
		return nil, auth.ErrUnauthorized
	}
	return p, nil
}

// notify sends a security notice in the background. Failures are logged.
func (h *Handlers) notify(ctx context.Context, p *models.Principal, event email.Event) {
	if h.notifier == nil || p.Email == "" {
		return
	}

	at := h.now()
	ctx = context.WithoutCancel(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, noticeTimeout)
		defer cancel()

		if err := h.notifier.SendSecurityNotice(ctx, p.Email, event, at); err != nil {
			slog.WarnContext(ctx, "security_notice_failed", "event", event, "user_id", p.UserID, "error", err)
		}
	}()
}
