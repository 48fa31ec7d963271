// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package mfa_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/models"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/encryption"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countSessions(t *testing.T, f *fixture) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.repo.DB().Get(&n, `SELECT COUNT(*) FROM mfa_sessions`))
	return n
}

func TestVerify_TOTP(t *testing.T) {
	f := newFixture(t)
	enrollment := f.enroll(t, testUser)

	result, err := f.verify(t, testUser, f.currentCode(t, enrollment.Secret))

	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.True(t, result.ExpiresAt.Equal(f.clock.Now().Add(mfa.SessionTTL)))

	valid, err := f.svc.Sessions().Validate(context.Background(), result.SessionID, testUser, testClient)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestVerify_TOTPWithinDrift(t *testing.T) {
	f := newFixture(t)
	enrollment := f.enroll(t, testUser)
	code := f.currentCode(t, enrollment.Secret)

	f.clock.Advance(60 * time.Second)
	_, err := f.verify(t, testUser, code)
	assert.NoError(t, err)

	f.clock.Advance(60 * time.Second)
	_, err = f.verify(t, testUser, code)
	assert.ErrorIs(t, err, mfa.ErrInvalidCode)
}

func TestVerify_WrongTOTPCreatesNoSession(t *testing.T) {
	f := newFixture(t)
	enrollment := f.enroll(t, testUser)
	wrong := "000000"
	if f.currentCode(t, enrollment.Secret) == wrong {
		wrong = "111111"
	}

	result, err := f.verify(t, testUser, wrong)

	require.ErrorIs(t, err, mfa.ErrInvalidCode)
	assert.Nil(t, result)
	assert.Zero(t, countSessions(t, f))
}

func TestVerify_NotEnabled(t *testing.T) {
	f := newFixture(t)

	for _, raw := range []string{"123456", "AB12-CD34"} {
		_, err := f.verify(t, testUser, raw)
		assert.ErrorIs(t, err, mfa.ErrNotEnabled, raw)
	}
}

func TestVerify_EachBackupCodeOnce(t *testing.T) {
	f := newFixture(t)
	enrollment := f.enroll(t, testUser)

	for _, code := range enrollment.BackupCodes {
		_, err := f.verify(t, testUser, code)
		require.NoError(t, err, code)
	}
	for _, code := range enrollment.BackupCodes {
		_, err := f.verify(t, testUser, code)
		assert.ErrorIs(t, err, mfa.ErrInvalidCode, code)
	}

	count, err := f.svc.BackupCodeCount(context.Background(), testUser)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, int64(10), countSessions(t, f))
}

func TestVerify_KnownBackupCodeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	enrollment, err := f.svc.Generate(ctx, testUser, "")
	require.NoError(t, err)
	codes := append([]string{"AB12-CD34"}, enrollment.BackupCodes[1:]...)
	require.NoError(t, f.svc.Enable(ctx, testUser, mfa.EnableRequest{
		Secret:      enrollment.Secret,
		Code:        f.currentCode(t, enrollment.Secret),
		BackupCodes: codes,
	}))

	result, err := f.verify(t, testUser, "AB12-CD34")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)

	_, err = f.verify(t, testUser, "AB12-CD34")
	assert.ErrorIs(t, err, mfa.ErrInvalidCode)

	_, err = f.verify(t, testUser, "ab12-cd34")
	assert.ErrorIs(t, err, mfa.ErrInvalidCode)
}

func TestVerify_MalformedBackupCode(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, testUser)

	for _, raw := range []string{"AB-12", "ABCD-EFGH-IJKL", "!!!!-????"} {
		_, err := f.verify(t, testUser, raw)
		assert.ErrorIs(t, err, mfa.ErrInvalidCode, raw)
	}
}

func TestVerify_BackupCodeOfOtherUser(t *testing.T) {
	f := newFixture(t)
	other := f.enroll(t, "user-2")
	f.enroll(t, testUser)

	_, err := f.verify(t, testUser, other.BackupCodes[0])

	assert.ErrorIs(t, err, mfa.ErrInvalidCode)
}

func TestVerify_ConcurrentBackupCodeUsedOnce(t *testing.T) {
	f := newFixture(t)
	enrollment := f.enroll(t, testUser)
	code, err := mfa.ParseCode(enrollment.BackupCodes[0])
	require.NoError(t, err)

	const workers = 5
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Verify(context.Background(), testUser, code, testClient)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, mfa.ErrInvalidCode)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestVerify_TamperedSecretSurfacesDecryptionError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	enrollment := f.enroll(t, testUser)

	settings, err := f.repo.GetMFASettings(ctx, testUser)
	require.NoError(t, err)
	tampered := []byte(*settings.SecretEncrypted)
	if tampered[20] == 'A' {
		tampered[20] = 'B'
	} else {
		tampered[20] = 'A'
	}
	forged := string(tampered)
	require.NoError(t, f.repo.UpsertMFASettings(ctx, &models.MFASettings{
		UserID: testUser, Enabled: true, SecretEncrypted: &forged,
		CreatedAt: settings.CreatedAt, UpdatedAt: settings.UpdatedAt,
	}))

	_, err = f.verify(t, testUser, f.currentCode(t, enrollment.Secret))

	require.ErrorIs(t, err, encryption.ErrDecryption)
	assert.NotErrorIs(t, err, mfa.ErrInvalidCode)
	assert.Zero(t, countSessions(t, f))
}

func TestConfirm_CreatesNoSession(t *testing.T) {
	f := newFixture(t)
	enrollment := f.enroll(t, testUser)
	code, err := mfa.ParseCode(f.currentCode(t, enrollment.Secret))
	require.NoError(t, err)

	require.NoError(t, f.svc.Confirm(context.Background(), testUser, code))

	assert.Zero(t, countSessions(t, f))
}

func TestVerify_RequiresUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), "", mfa.TOTPCode{Value: "123456"}, testClient)

	assert.ErrorIs(t, err, mfa.ErrValidation)
}

func TestVerify_UnknownCodeVariant(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), testUser, nil, testClient)

	require.ErrorIs(t, err, mfa.ErrValidation)
	assert.Equal(t, "code is not a supported code", err.Error())
	assert.NotContains(t, err.Error(), "nil")
}
