// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package mfa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"codeberg.org/oliverandrich/mfa-guard/internal/models"
	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/recovery"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/totp"
)

var phonePattern = regexp.MustCompile(`^\+[0-9]{7,15}$`)

// Enrollment is the material handed to a user during setup. It is not stored.
type Enrollment struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}

// EnableRequest carries the enrollment material back with a first code.
type EnableRequest struct {
	Secret      string
	Code        string
	BackupCodes []string
	BackupPhone string
}

// Generate creates a secret, its provisioning URI and a batch of backup codes.
// Nothing is persisted.
func (s *Service) Generate(_ context.Context, userID, email string) (*Enrollment, error) {
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}
	account := email
	if account == "" {
		account = userID
	}

	key, err := s.totp.Generate(account)
	if err != nil {
		return nil, err
	}
	codes, err := s.codes.GenerateCodes(recovery.CodeCount)
	if err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret:          key.Secret,
		ProvisioningURI: key.URI,
		BackupCodes:     codes,
	}, nil
}

// Enable turns MFA on after checking req.Code against req.Secret. Settings and
// the full backup code set are written in one transaction; a wrong code
// writes nothing.
func (s *Service) Enable(ctx context.Context, userID string, req EnableRequest) error {
	phone, err := validateEnable(userID, req)
	if err != nil {
		return err
	}

	now := s.now()
	valid, err := s.totp.Validate(normalizeTOTP(req.Code), req.Secret, now)
	if err != nil {
		if errors.Is(err, totp.ErrInvalidSecret) {
			return invalid("secret", "is not a valid TOTP secret")
		}
		return err
	}
	if !valid {
		slog.Warn("mfa_enable_failed", "user_id", userID, "reason", "invalid_code")
		return ErrInvalidCode
	}

	encrypted, err := s.enc.Encrypt(strings.ToUpper(req.Secret))
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}
	hashes, err := s.codes.HashCodes(req.BackupCodes)
	if err != nil {
		return fmt.Errorf("failed to hash backup codes: %w", err)
	}

	settings := &models.MFASettings{
		UserID:          userID,
		Enabled:         true,
		SecretEncrypted: &encrypted,
		BackupPhone:     phone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.UpsertMFASettings(ctx, settings); err != nil {
			return fmt.Errorf("failed to store mfa settings: %w", err)
		}
		if err := tx.ReplaceBackupCodes(ctx, userID, hashes, now); err != nil {
			return fmt.Errorf("failed to store backup codes: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("mfa_enabled", "user_id", userID, "backup_phone", phone != nil)
	return nil
}

func validateEnable(userID string, req EnableRequest) (*string, error) {
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}
	if strings.TrimSpace(req.Secret) == "" {
		return nil, invalid("secret", "is required")
	}
	if err := totp.CheckSecret(req.Secret); err != nil {
		return nil, invalid("secret", "is not a valid TOTP secret")
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, invalid("code", "is required")
	}
	if len(req.BackupCodes) != recovery.CodeCount {
		return nil, invalid("backup_codes", fmt.Sprintf("must contain exactly %d codes", recovery.CodeCount))
	}
	seen := make(map[string]struct{}, len(req.BackupCodes))
	for _, code := range req.BackupCodes {
		if !recovery.ValidFormat(code) {
			return nil, invalid("backup_codes", "must have the form XXXX-XXXX")
		}
		norm := recovery.NormalizeCode(code)
		if _, dup := seen[norm]; dup {
			return nil, invalid("backup_codes", "must not contain duplicates")
		}
		seen[norm] = struct{}{}
	}

	phone := strings.TrimSpace(req.BackupPhone)
	if phone == "" {
		return nil, nil
	}
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	if !phonePattern.MatchString(phone) {
		return nil, invalid("backup_phone", "is not a valid phone number")
	}
	return &phone, nil
}

// Disable turns MFA off, deletes all backup codes and revokes every MFA
// session of userID in one transaction.
func (s *Service) Disable(ctx context.Context, userID string) error {
	now := s.now()
	var revoked int64
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.DisableMFASettings(ctx, userID, now); err != nil {
			return fmt.Errorf("failed to disable mfa settings: %w", err)
		}
		if err := tx.DeleteBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete backup codes: %w", err)
		}
		n, err := tx.DeleteMFASessionsForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to revoke mfa sessions: %w", err)
		}
		revoked = n
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("mfa_disabled", "user_id", userID, "sessions_revoked", revoked)
	return nil
}

// RegenerateBackupCodes replaces every backup code of userID, used or not,
// with a new batch and returns the plaintexts.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.enabledSettings(ctx, s.repo, userID); err != nil {
		return nil, err
	}

	codes, err := s.codes.GenerateCodes(recovery.CodeCount)
	if err != nil {
		return nil, err
	}
	hashes, err := s.codes.HashCodes(codes)
	if err != nil {
		return nil, fmt.Errorf("failed to hash backup codes: %w", err)
	}

	now := s.now()
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		// disable may have won the race since the check above
		if _, err := s.enabledSettings(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.ReplaceBackupCodes(ctx, userID, hashes, now); err != nil {
			return fmt.Errorf("failed to store backup codes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("mfa_backup_codes_regenerated", "user_id", userID)
	return codes, nil
}

// DisableWithCode disables MFA after re-authenticating with a fresh code.
func (s *Service) DisableWithCode(ctx context.Context, userID string, code Code) error {
	if err := s.Confirm(ctx, userID, code); err != nil {
		return err
	}
	return s.Disable(ctx, userID)
}

// RegenerateWithCode regenerates backup codes after re-authenticating with a
// fresh code.
func (s *Service) RegenerateWithCode(ctx context.Context, userID string, code Code) ([]string, error) {
	if err := s.Confirm(ctx, userID, code); err != nil {
		return nil, err
	}
	return s.RegenerateBackupCodes(ctx, userID)
}
