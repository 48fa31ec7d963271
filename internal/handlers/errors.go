// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"codeberg.org/oliverandrich/mfa-guard/internal/auth"
	"codeberg.org/oliverandrich/mfa-guard/internal/ratelimit"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/encryption"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"github.com/labstack/echo/v4"
)

// Error codes returned to API callers.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotEnabled       = "MFA_NOT_ENABLED"
	CodeInvalidCode      = "INVALID_CODE"
	CodeMFARequired      = "MFA_REQUIRED"
	CodeSessionExpired   = "MFA_SESSION_EXPIRED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeDecryptionFailed = "DECRYPTION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// APIError is the body of every error response.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"` // seconds
}

// Classify maps err onto an HTTP status and a stable API error. Internal
// details never reach the message.
func Classify(err error) (int, APIError) {
	var (
		validation *mfa.ValidationError
		limit      *ratelimit.LimitError
		httpErr    *echo.HTTPError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, APIError{Code: CodeValidation, Message: validation.Error()}
	case errors.Is(err, mfa.ErrValidation):
		return http.StatusBadRequest, APIError{Code: CodeValidation, Message: "Invalid request"}
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Authentication required"}
	case errors.Is(err, mfa.ErrNotEnabled):
		return http.StatusBadRequest, APIError{Code: CodeNotEnabled, Message: "Two-factor authentication is not enabled"}
	case errors.Is(err, mfa.ErrInvalidCode):
		return http.StatusBadRequest, APIError{Code: CodeInvalidCode, Message: "Invalid verification code"}
	case errors.Is(err, auth.ErrMFARequired):
		return http.StatusForbidden, APIError{Code: CodeMFARequired, Message: "Two-factor verification required"}
	case errors.Is(err, mfa.ErrSessionExpired):
		return http.StatusForbidden, APIError{Code: CodeSessionExpired, Message: "Two-factor session expired, verify again"}
	case errors.As(err, &limit):
		return http.StatusTooManyRequests, APIError{
			Code:       CodeRateLimited,
			Message:    "Too many attempts, try again later",
			RetryAfter: retrySeconds(limit),
		}
	case errors.Is(err, encryption.ErrDecryption):
		return http.StatusInternalServerError, APIError{Code: CodeDecryptionFailed, Message: "Stored credentials could not be read"}
	case errors.As(err, &httpErr):
		return classifyHTTPError(httpErr)
	}
	return http.StatusInternalServerError, APIError{Code: CodeInternal, Message: "Internal server error"}
}

// classifyHTTPError covers errors raised by echo itself: routing, binding,
// body limits and CSRF.
func classifyHTTPError(he *echo.HTTPError) (int, APIError) {
	status := he.Code
	if status == http.StatusBadRequest {
		return status, APIError{Code: CodeValidation, Message: "Malformed request"}
	}
	if status >= http.StatusInternalServerError {
		return http.StatusInternalServerError, APIError{Code: CodeInternal, Message: "Internal server error"}
	}

	text := http.StatusText(status)
	if text == "" {
		text = "Error"
	}
	code := strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(text))
	return status, APIError{Code: code, Message: text}
}

func retrySeconds(limit *ratelimit.LimitError) int {
	return max(1, int(math.Ceil(limit.RetryAfter.Seconds())))
}

// HTTPErrorHandler renders every error as an APIError.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := Classify(err)

	ctx := c.Request().Context()
	switch body.Code {
	case CodeDecryptionFailed, CodeInternal:
		slog.ErrorContext(ctx, "request_failed", "error", err, "path", c.Path())
	}

	if body.RetryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", writeErr)
	}
}
