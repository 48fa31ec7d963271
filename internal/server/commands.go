// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/config"
	"codeberg.org/oliverandrich/mfa-guard/internal/database"
	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/encryption"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// GenKey prints a fresh encryption key for MFA_ENCRYPTION_KEY.
func GenKey(_ context.Context, cmd *cli.Command) error {
	key, err := encryption.GenerateKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, key)
	return err
}

// MigrateUp applies all pending migrations.
func MigrateUp(_ context.Context, cmd *cli.Command) error {
	return withDatabase(cmd, func(db *sqlx.DB) error {
		if err := database.RunMigrations(db.DB); err != nil {
			return err
		}
		return logVersion(db)
	})
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(_ context.Context, cmd *cli.Command) error {
	return withDatabase(cmd, func(db *sqlx.DB) error {
		if err := database.MigrateDown(db.DB); err != nil {
			return err
		}
		return logVersion(db)
	})
}

// MigrateReset rolls back every migration.
func MigrateReset(_ context.Context, cmd *cli.Command) error {
	return withDatabase(cmd, func(db *sqlx.DB) error {
		if err := database.MigrateReset(db.DB); err != nil {
			return err
		}
		return logVersion(db)
	})
}

// Sweep deletes expired MFA sessions once.
func Sweep(ctx context.Context, cmd *cli.Command) error {
	return withDatabase(cmd, func(db *sqlx.DB) error {
		if err := database.RunMigrations(db.DB); err != nil {
			return err
		}
		n, err := mfa.NewSessions(repository.New(db), time.Now).Sweep(ctx)
		if err != nil {
			return err
		}
		slog.Info("sessions_swept", "count", n)
		return nil
	})
}

func withDatabase(cmd *cli.Command, fn func(db *sqlx.DB) error) error {
	SetupLogger(config.LogConfig{
		Level:  cmd.String("log-level"),
		Format: cmd.String("log-format"),
	})

	db, err := database.OpenWithoutMigrations(cmd.String("database-dsn"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	return fn(db)
}

func logVersion(db *sqlx.DB) error {
	version, err := database.MigrationVersion(db.DB)
	if err != nil {
		return err
	}
	slog.Info("database migrated", "version", version)
	return nil
}
