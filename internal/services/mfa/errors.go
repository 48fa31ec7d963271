// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package mfa

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. Use errors.As with *ValidationError
	// for the offending field.
	ErrValidation = errors.New("invalid request")
	// ErrNotEnabled is returned when an operation needs MFA to be enabled.
	ErrNotEnabled = errors.New("mfa is not enabled")
	// ErrInvalidCode is returned for any rejected code. It never tells which
	// kind of code was tried or whether a matching code exists.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrSessionExpired is returned when an MFA session reference no longer validates.
	ErrSessionExpired = errors.New("mfa session expired")
	// ErrMissingEncryptor is returned by NewService without an encryptor.
	ErrMissingEncryptor = errors.New("mfa service requires an encryptor")
)

// ValidationError describes a malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
