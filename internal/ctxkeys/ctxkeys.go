// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ctxkeys defines typed context keys used across packages.
package ctxkeys

// Principal is the context key for the authenticated principal.
type Principal struct{}

// Session is the context key for the decoded session cookie.
type Session struct{}

// MFAState is the context key for the request's MFA status.
type MFAState struct{}
