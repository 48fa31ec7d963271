// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package totp wraps RFC 6238 code generation and validation.
package totp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the TOTP step length.
	Period = 30
	// Skew is the number of steps accepted on either side of the current one.
	Skew = 2
	// Digits is the code length.
	Digits = otp.DigitsSix
	// SecretSize is the secret length in bytes (160 bits).
	SecretSize = 20
)

// ErrInvalidSecret is returned for secrets that are not base32 or too short.
var ErrInvalidSecret = errors.New("invalid TOTP secret")

// Key is a freshly generated secret and its provisioning URI.
type Key struct {
	Secret string
	URI    string
}

// Generator creates and checks TOTP codes for one issuer.
type Generator struct {
	issuer string
}

// New creates a Generator.
func New(issuer string) *Generator {
	if issuer == "" {
		issuer = "MFA Guard"
	}
	return &Generator{issuer: issuer}
}

// Issuer returns the issuer name embedded in provisioning URIs.
func (g *Generator) Issuer() string {
	return g.issuer
}

// Generate creates a random 160-bit secret for accountName.
func (g *Generator) Generate(accountName string) (*Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      g.issuer,
		AccountName: accountName,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return &Key{Secret: key.Secret(), URI: key.URL()}, nil
}

// Validate reports whether code is valid for secret at t, accepting the
// surrounding Skew steps.
func (g *Generator) Validate(code, secret string, t time.Time) (bool, error) {
	if err := CheckSecret(secret); err != nil {
		return false, err
	}
	code = strings.TrimSpace(code)
	if len(code) != Digits.Length() {
		return false, nil
	}

	valid, err := totp.ValidateCustom(code, secret, t, validateOpts())
	if err != nil {
		// pquerna reports malformed codes as errors; they are simply wrong codes here.
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, fmt.Errorf("failed to validate TOTP code: %w", err)
	}
	return valid, nil
}

// Code computes the code for secret at t.
func (g *Generator) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, validateOpts())
}

// CheckSecret verifies that secret is unpadded base32 of at least 160 bits.
func CheckSecret(secret string) error {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(raw) < SecretSize {
		return fmt.Errorf("%w: secret shorter than %d bytes", ErrInvalidSecret, SecretSize)
	}
	return nil
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    Digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}
