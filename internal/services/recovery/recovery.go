// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package recovery generates and hashes single-use backup codes.
package recovery

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the length of each backup code without the separator.
	CodeLength = 8
	// CodeCount is the number of codes issued per batch.
	CodeCount = 10
	// Separator splits a code into two groups of four.
	Separator = "-"
	// DefaultCost is the bcrypt cost factor.
	DefaultCost = 10
)

// alphabet for backup codes (uppercase + digits).
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrInvalidFormat is returned for codes that are not XXXX-XXXX.
var ErrInvalidFormat = errors.New("backup code must have the form XXXX-XXXX")

// Service handles backup code generation and hashing.
type Service struct {
	cost int
}

// NewService creates a new recovery service with the default bcrypt cost.
func NewService() *Service {
	return &Service{cost: DefaultCost}
}

// NewServiceWithCost creates a recovery service with a custom bcrypt cost.
func NewServiceWithCost(cost int) *Service {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &Service{cost: cost}
}

// GenerateCodes returns count formatted plaintext codes. Nothing is hashed;
// hashing happens once the codes are accepted by HashCodes.
func (s *Service) GenerateCodes(count int) ([]string, error) {
	if count <= 0 {
		count = CodeCount
	}

	codes := make([]string, count)
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; {
		code, err := generateCode(CodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes[i] = formatCode(code)
		i++
	}

	return codes, nil
}

// HashCodes validates and hashes a batch of plaintext codes for storage.
func (s *Service) HashCodes(codes []string) ([]string, error) {
	hashes := make([]string, len(codes))
	for i, code := range codes {
		if !ValidFormat(code) {
			return nil, ErrInvalidFormat
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(NormalizeCode(code)), s.cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash code: %w", err)
		}
		hashes[i] = string(hash)
	}
	return hashes, nil
}

// Matches compares a presented code against a stored hash in constant time.
func Matches(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(NormalizeCode(code))) == nil
}

// NormalizeCode removes separators and whitespace and converts to uppercase.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, Separator, "")
	code = strings.ReplaceAll(code, " ", "")
	return strings.ToUpper(code)
}

// ValidFormat reports whether code has the form XXXX-XXXX over [A-Z0-9],
// ignoring case and surrounding whitespace.
func ValidFormat(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength+len(Separator) || code[4:5] != Separator {
		return false
	}
	for _, r := range code[:4] + code[5:] {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

// generateCode draws length characters from alphabet without modulo bias.
func generateCode(length int) (string, error) {
	// largest multiple of len(alphabet) that fits in a byte
	limit := byte(256 - 256%len(alphabet))

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// formatCode formats a code with dashes for readability (e.g., "AB12-CD34").
func formatCode(code string) string {
	var parts []string
	for i := 0; i < len(code); i += 4 {
		end := min(i+4, len(code))
		parts = append(parts, code[i:end])
	}
	return strings.Join(parts, Separator)
}
