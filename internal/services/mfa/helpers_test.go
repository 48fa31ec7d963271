// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package mfa_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/totp"
	"codeberg.org/oliverandrich/mfa-guard/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

var testClient = mfa.ClientInfo{IP: "1.2.3.4", UserAgent: "Mozilla/5.0 (test)"}

type fixture struct {
	svc   *mfa.Service
	repo  *repository.Repository
	clock *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewClock(testutil.FixedTime)
	svc, repo := testutil.NewTestMFAService(t, clock)
	return &fixture{svc: svc, repo: repo, clock: clock}
}

// currentCode returns the TOTP code for secret at the fixture time.
func (f *fixture) currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.New("").Code(secret, f.clock.Now())
	require.NoError(t, err)
	return code
}

// enroll generates and enables MFA for userID and returns the enrollment.
func (f *fixture) enroll(t *testing.T, userID string) *mfa.Enrollment {
	t.Helper()
	ctx := context.Background()
	enrollment, err := f.svc.Generate(ctx, userID, userID+"@example.com")
	require.NoError(t, err)

	err = f.svc.Enable(ctx, userID, mfa.EnableRequest{
		Secret:      enrollment.Secret,
		Code:        f.currentCode(t, enrollment.Secret),
		BackupCodes: enrollment.BackupCodes,
	})
	require.NoError(t, err)
	return enrollment
}

func (f *fixture) verify(t *testing.T, userID, raw string) (*mfa.VerifyResult, error) {
	t.Helper()
	code, err := mfa.ParseCode(raw)
	require.NoError(t, err)
	return f.svc.Verify(context.Background(), userID, code, testClient)
}
