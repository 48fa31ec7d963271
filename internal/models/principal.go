// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

// Principal is the user authenticated by the upstream login flow.
// Only the identifier is trusted; Email is used for notices.
type Principal struct {
	UserID string
	Email  string
}
