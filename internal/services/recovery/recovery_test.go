// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery_test

import (
	"regexp"
	"testing"

	"codeberg.org/oliverandrich/mfa-guard/internal/services/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func TestNewService(t *testing.T) {
	svc := recovery.NewService()
	assert.NotNil(t, svc)
}

func TestGenerateCodes(t *testing.T) {
	svc := recovery.NewService()

	codes, err := svc.GenerateCodes(recovery.CodeCount)

	require.NoError(t, err)
	assert.Len(t, codes, 10)
	for _, code := range codes {
		assert.Regexp(t, codePattern, code)
	}
}

func TestGenerateCodes_DefaultCount(t *testing.T) {
	svc := recovery.NewService()

	for _, n := range []int{0, -5} {
		codes, err := svc.GenerateCodes(n)
		require.NoError(t, err)
		assert.Len(t, codes, recovery.CodeCount)
	}
}

func TestGenerateCodes_UniqueValues(t *testing.T) {
	svc := recovery.NewService()

	codes, err := svc.GenerateCodes(500)

	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "Duplicate code found: %s", code)
		seen[code] = true
	}
}

func TestHashCodes(t *testing.T) {
	svc := recovery.NewServiceWithCost(bcrypt.MinCost)
	codes, err := svc.GenerateCodes(3)
	require.NoError(t, err)

	hashes, err := svc.HashCodes(codes)

	require.NoError(t, err)
	require.Len(t, hashes, 3)
	for i, code := range codes {
		assert.NotEqual(t, code, hashes[i])
		assert.True(t, recovery.Matches(hashes[i], code), "hash %d should match", i)
	}
	assert.NotEqual(t, hashes[0], hashes[1])
}

func TestHashCodes_SameCodeDifferentSalt(t *testing.T) {
	svc := recovery.NewServiceWithCost(bcrypt.MinCost)

	hashes, err := svc.HashCodes([]string{"AB12-CD34", "AB12-CD34"})

	require.NoError(t, err)
	assert.NotEqual(t, hashes[0], hashes[1])
}

func TestHashCodes_RejectsMalformed(t *testing.T) {
	svc := recovery.NewServiceWithCost(bcrypt.MinCost)

	_, err := svc.HashCodes([]string{"AB12-CD34", "nope"})

	assert.ErrorIs(t, err, recovery.ErrInvalidFormat)
}

func TestHashCodes_UsesConfiguredCost(t *testing.T) {
	svc := recovery.NewServiceWithCost(bcrypt.MinCost)

	hashes, err := svc.HashCodes([]string{"AB12-CD34"})
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hashes[0]))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestMatches(t *testing.T) {
	svc := recovery.NewServiceWithCost(bcrypt.MinCost)
	hashes, err := svc.HashCodes([]string{"AB12-CD34"})
	require.NoError(t, err)

	tests := []struct {
		code     string
		expected bool
	}{
		{"AB12-CD34", true},
		{"ab12-cd34", true},
		{" AB12-CD34 ", true},
		{"AB12CD34", true},
		{"AB12-CD35", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, recovery.Matches(hashes[0], tt.code))
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AB12-CD34", "AB12CD34"},
		{"ab12-cd34", "AB12CD34"},
		{" ab12 cd34 ", "AB12CD34"},
		{"", ""},
		{"----", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, recovery.NormalizeCode(tt.input))
		})
	}
}

func TestValidFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"AB12-CD34", true},
		{"ab12-cd34", true},
		{" AB12-CD34", true},
		{"AB12CD34", false},
		{"AB1-2CD34", false},
		{"AB12-CD3", false},
		{"AB12-CD3!", false},
		{"AB12-CD345", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, recovery.ValidFormat(tt.input))
		})
	}
}
