// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/auth"
	"codeberg.org/oliverandrich/mfa-guard/internal/handlers"
	"codeberg.org/oliverandrich/mfa-guard/internal/ratelimit"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/encryption"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &mfa.ValidationError{Field: "code", Reason: "is required"}, http.StatusBadRequest, handlers.CodeValidation},
		{"wrapped validation", fmt.Errorf("enable: %w", mfa.ErrValidation), http.StatusBadRequest, handlers.CodeValidation},
		{"unauthorized", auth.ErrUnauthorized, http.StatusUnauthorized, handlers.CodeUnauthorized},
		{"not enabled", mfa.ErrNotEnabled, http.StatusBadRequest, handlers.CodeNotEnabled},
		{"invalid code", mfa.ErrInvalidCode, http.StatusBadRequest, handlers.CodeInvalidCode},
		{"mfa required", auth.ErrMFARequired, http.StatusForbidden, handlers.CodeMFARequired},
		{"session expired", mfa.ErrSessionExpired, http.StatusForbidden, handlers.CodeSessionExpired},
		{"rate limited", &ratelimit.LimitError{Policy: "verify", RetryAfter: time.Minute}, http.StatusTooManyRequests, handlers.CodeRateLimited},
		{"decryption", fmt.Errorf("failed to decrypt: %w", encryption.ErrDecryption), http.StatusInternalServerError, handlers.CodeDecryptionFailed},
		{"bind error", echo.NewHTTPError(http.StatusBadRequest, "Syntax error: offset=3"), http.StatusBadRequest, handlers.CodeValidation},
		{"not found", echo.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"method not allowed", echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"body too large", echo.ErrStatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge, "REQUEST_ENTITY_TOO_LARGE"},
		{"forbidden", echo.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"unknown", errors.New("sql: database is closed"), http.StatusInternalServerError, handlers.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, apiErr := handlers.Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestClassify_HidesInternals(t *testing.T) {
	_, apiErr := handlers.Classify(errors.New("UNIQUE constraint failed: mfa_settings.user_id"))
	assert.NotContains(t, apiErr.Message, "mfa_settings")

	_, apiErr = handlers.Classify(echo.NewHTTPError(http.StatusBadRequest, "Syntax error: offset=3"))
	assert.NotContains(t, apiErr.Message, "offset")
}

func TestClassify_RetryAfterRoundsUp(t *testing.T) {
	_, apiErr := handlers.Classify(&ratelimit.LimitError{Policy: "verify", RetryAfter: 1500 * time.Millisecond})
	assert.Equal(t, 2, apiErr.RetryAfter)

	_, apiErr = handlers.Classify(&ratelimit.LimitError{Policy: "verify", RetryAfter: 0})
	assert.Equal(t, 1, apiErr.RetryAfter)
}

func TestHTTPErrorHandler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/mfa/verify", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handlers.HTTPErrorHandler(&ratelimit.LimitError{Policy: "verify", RetryAfter: 90 * time.Second}, c)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":"RATE_LIMITED","message":"Too many attempts, try again later","retry_after":90}`, rec.Body.String())
}

func TestHTTPErrorHandler_Head(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodHead, "/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handlers.HTTPErrorHandler(echo.ErrNotFound, c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHTTPErrorHandler_Committed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Response().WriteHeader(http.StatusOK)

	handlers.HTTPErrorHandler(mfa.ErrInvalidCode, c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}
