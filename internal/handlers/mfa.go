// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/appcontext"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/email"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"github.com/labstack/echo/v4"
)

type enableRequest struct {
	Secret      string   `json:"secret"`
	Code        string   `json:"code"`
	BackupCodes []string `json:"backup_codes"`
	BackupPhone string   `json:"backup_phone"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

// Status returns the MFA status of the principal.
func (h *Handlers) Status(c echo.Context) error {
	cc := appcontext.Wrap(c)
	p, err := principal(cc)
	if err != nil {
		return err
	}

	status, err := h.mfa.Status(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// Setup generates enrollment material. Nothing is stored until Enable.
func (h *Handlers) Setup(c echo.Context) error {
	cc := appcontext.Wrap(c)
	p, err := principal(cc)
	if err != nil {
		return err
	}

	enrollment, err := h.mfa.Generate(c.Request().Context(), p.UserID, p.Email)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, enrollment)
}

// Enable confirms the enrollment with a first code and turns MFA on.
func (h *Handlers) Enable(c echo.Context) error {
	cc := appcontext.Wrap(c)
	p, err := principal(cc)
	if err != nil {
		return err
	}

	var req enableRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	err = h.mfa.Enable(ctx, p.UserID, mfa.EnableRequest{
		Secret:      req.Secret,
		Code:        req.Code,
		BackupCodes: req.BackupCodes,
		BackupPhone: req.BackupPhone,
	})
	if err != nil {
		return err
	}

	h.notify(ctx, p, email.EventMFAEnabled)

	status, err := h.mfa.Status(ctx, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// Verify checks a code and attaches the new MFA session to the cookie.
func (h *Handlers) Verify(c echo.Context) error {
	cc := appcontext.Wrap(c)
	p, err := principal(cc)
	if err != nil {
		return err
	}

	code, err := bindCode(c)
	if err != nil {
		return err
	}

	result, err := h.mfa.Verify(c.Request().Context(), p.UserID, code, cc.Client())
	if err != nil {
		return err
	}

	if err := h.setMFASession(cc, result.SessionID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, verifyResponse{Verified: true, ExpiresAt: result.ExpiresAt})
}

// Disable turns MFA off after re-authentication with a fresh code.
func (h *Handlers) Disable(c echo.Context) error {
	cc := appcontext.Wrap(c)
	p, err := principal(cc)
	if err != nil {
		return err
	}

	code, err := bindCode(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.mfa.DisableWithCode(ctx, p.UserID, code); err != nil {
		return err
	}

	// The sessions are gone already; drop the stale reference too.
	if err := h.setMFASession(cc, ""); err != nil {
		return err
	}

	h.notify(ctx, p, email.EventMFADisabled)

	status, err := h.mfa.Status(ctx, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// RegenerateBackupCodes replaces all backup codes after re-authentication.
func (h *Handlers) RegenerateBackupCodes(c echo.Context) error {
	cc := appcontext.Wrap(c)
	p, err := principal(cc)
	if err != nil {
		return err
	}

	code, err := bindCode(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	codes, err := h.mfa.RegenerateWithCode(ctx, p.UserID, code)
	if err != nil {
		return err
	}

	h.notify(ctx, p, email.EventBackupCodesRegenerated)

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

// BackupCodeCount returns the number of unused backup codes.
func (h *Handlers) BackupCodeCount(c echo.Context) error {
	cc := appcontext.Wrap(c)
	p, err := principal(cc)
	if err != nil {
		return err
	}

	n, err := h.mfa.BackupCodeCount(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, countResponse{Count: n})
}

// bindCode reads {"code": "..."} and builds the code variant.
func bindCode(c echo.Context) (mfa.Code, error) {
	var req codeRequest
	if err := c.Bind(&req); err != nil {
		return nil, err
	}
	return mfa.ParseCode(req.Code)
}

// setMFASession re-issues the principal cookie with the given MFA session id.
func (h *Handlers) setMFASession(cc *appcontext.Context, sessionID string) error {
	current := cc.Session()
	if current == nil {
		return nil
	}

	data := *current
	data.MFASessionID = sessionID

	cookie, err := h.cookies.Encode(&data)
	if err != nil {
		return err
	}
	cc.SetCookie(cookie)
	return nil
}
