// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/config"
	"codeberg.org/oliverandrich/mfa-guard/internal/database"
	"codeberg.org/oliverandrich/mfa-guard/internal/handlers"
	"codeberg.org/oliverandrich/mfa-guard/internal/jobs"
	"codeberg.org/oliverandrich/mfa-guard/internal/ratelimit"
	"codeberg.org/oliverandrich/mfa-guard/internal/repository"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/email"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/encryption"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	logger := SetupLogger(cfg.Log)

	// Fail fast before touching any state.
	enc, err := encryption.NewFromString(cfg.MFA.EncryptionKey)
	if err != nil {
		return fmt.Errorf("mfa encryption key: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	repo := repository.New(db)

	svc, err := mfa.NewService(repo, enc, mfa.Options{Issuer: cfg.MFA.Issuer})
	if err != nil {
		return err
	}

	cookies, err := session.NewManager(&cfg.Session, cfg.Secure())
	if err != nil {
		return err
	}
	if cfg.Session.HashKey == "" {
		slog.Warn("no session hash key configured, cookies from the login application will be rejected")
	}

	scheduler, err := jobs.NewScheduler(logger)
	if err != nil {
		return err
	}
	if err := scheduler.RegisterIntervalJob(cfg.MFA.SweepInterval, jobs.SweepSessionsJob(svc.Sessions())); err != nil {
		return err
	}

	limiter, closeLimiter, err := setupLimiter(ctx, cfg, scheduler)
	if err != nil {
		return err
	}
	defer closeLimiter()

	notifier, err := setupNotifier(cfg)
	if err != nil {
		return err
	}

	e, h := New(cfg, Deps{
		Repo:     repo,
		MFA:      svc,
		Cookies:  cookies,
		Limiter:  limiter,
		Notifier: notifier,
	})

	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.Error("failed to stop scheduler", "error", err)
		}
	}()

	err = startWithGracefulShutdown(e, cfg)
	h.Wait()
	return err
}

// setupLimiter picks the Redis store when configured and the in-memory store
// otherwise. The in-memory store is pruned on the sweep interval.
func setupLimiter(ctx context.Context, cfg *config.Config, scheduler *jobs.Scheduler) (*ratelimit.Limiter, func(), error) {
	if cfg.RateLimit.RedisURL != "" {
		store, err := ratelimit.NewRedisStoreFromURL(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("rate limiter using redis")
		return ratelimit.New(store, nil), func() {
			if err := store.Close(); err != nil {
				slog.Error("failed to close redis", "error", err)
			}
		}, nil
	}

	store := ratelimit.NewMemoryStore()
	if err := scheduler.RegisterIntervalJob(cfg.MFA.SweepInterval, jobs.PruneRateLimitJob(store, time.Now)); err != nil {
		return nil, nil, err
	}
	slog.Info("rate limiter using process memory")
	return ratelimit.New(store, nil), func() {}, nil
}

func setupNotifier(cfg *config.Config) (handlers.Notifier, error) {
	if !cfg.SMTP.Enabled() {
		return nil, nil
	}
	svc, err := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure email: %w", err)
	}
	return svc, nil
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
