// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"
	"errors"

	"codeberg.org/oliverandrich/mfa-guard/internal/ctxkeys"
	"codeberg.org/oliverandrich/mfa-guard/internal/models"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/session"
)

// MFAState describes the second factor for the current request.
type MFAState struct {
	Enabled  bool `json:"enabled"`
	Verified bool `json:"verified"`
}

// WithSession stores the session and the principal it carries.
func WithSession(ctx context.Context, data *session.Data) context.Context {
	ctx = context.WithValue(ctx, ctxkeys.Session{}, data)
	return context.WithValue(ctx, ctxkeys.Principal{}, &models.Principal{
		UserID: data.UserID,
		Email:  data.Email,
	})
}

// GetSession returns the decoded session cookie, or nil.
func GetSession(ctx context.Context) *session.Data {
	if data, ok := ctx.Value(ctxkeys.Session{}).(*session.Data); ok {
		return data
	}
	return nil
}

// GetPrincipal returns the authenticated principal from the context, or nil if not authenticated.
func GetPrincipal(ctx context.Context) *models.Principal {
	if p, ok := ctx.Value(ctxkeys.Principal{}).(*models.Principal); ok {
		return p
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated principal.
func IsAuthenticated(ctx context.Context) bool {
	return GetPrincipal(ctx) != nil
}

// WithMFAState stores the MFA status for the request.
func WithMFAState(ctx context.Context, state MFAState) context.Context {
	return context.WithValue(ctx, ctxkeys.MFAState{}, state)
}

// GetMFAState returns the MFA status, zero if it was never loaded.
func GetMFAState(ctx context.Context) MFAState {
	state, _ := ctx.Value(ctxkeys.MFAState{}).(MFAState)
	return state
}

var (
	// ErrUnauthorized is returned when a request has no principal.
	ErrUnauthorized = errors.New("authentication required")
	// ErrMFARequired is returned when MFA is enabled but no MFA session is attached.
	ErrMFARequired = errors.New("mfa verification required")
)
