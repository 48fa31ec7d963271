// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package jobs runs periodic maintenance tasks.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/mfa-guard/internal/ratelimit"
	"codeberg.org/oliverandrich/mfa-guard/internal/services/mfa"
)

// Job is a named unit of periodic work.
type Job struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

// NewJob creates a job. A zero timeout means no deadline.
func NewJob(name string, timeout time.Duration, run func(ctx context.Context) error) Job {
	return Job{name: name, timeout: timeout, run: run}
}

// Name returns the job name.
func (j Job) Name() string {
	return j.name
}

// Run executes the job once, applying its timeout.
func (j Job) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	return j.run(ctx)
}

// SweepSessionsJob deletes expired MFA sessions.
func SweepSessionsJob(sessions *mfa.Sessions) Job {
	return NewJob("sweep_mfa_sessions", time.Minute, func(ctx context.Context) error {
		n, err := sessions.Sweep(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			slog.InfoContext(ctx, "mfa_sessions_swept", "count", n)
		}
		return nil
	})
}

// PruneRateLimitJob drops idle keys from an in-memory limiter store.
func PruneRateLimitJob(store *ratelimit.MemoryStore, now func() time.Time) Job {
	return NewJob("prune_rate_limits", 0, func(ctx context.Context) error {
		if n := store.Prune(now()); n > 0 {
			slog.DebugContext(ctx, "rate_limit_keys_pruned", "count", n)
		}
		return nil
	})
}
