// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit implements sliding-window limits for the MFA operations.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Policy is one independent sliding window.
type Policy struct {
	Name   string
	Window time.Duration
	Limit  int
}

// Policies for the MFA endpoints.
var (
	// Verify covers code verification, keyed by IP and user.
	Verify = Policy{Name: "verify", Window: 15 * time.Minute, Limit: 5}
	// Enroll covers setup and enable, keyed by IP and user.
	Enroll = Policy{Name: "enroll", Window: time.Hour, Limit: 3}
	// Regenerate covers backup code regeneration, keyed by user only.
	Regenerate = Policy{Name: "regenerate", Window: 6 * time.Hour, Limit: 2}
	// General covers every MFA endpoint, keyed by IP.
	General = Policy{Name: "general", Window: 10 * time.Minute, Limit: 20}
)

// ErrRateLimited matches every *LimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError is returned when a policy rejects a request.
type LimitError struct {
	Policy     string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Policy, e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Result is the outcome of a single hit.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Store records hits for a key and decides whether another one fits into the
// window ending at now. Implementations must be safe for concurrent use.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration, limit int, now time.Time) (Result, error)
}

// Limiter applies policies against a store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// New creates a Limiter. A nil now uses time.Now.
func New(store Store, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{store: store, now: now}
}

// Allow records one attempt for key under policy. It returns a *LimitError
// when the window is full; rejected attempts are not recorded.
func (l *Limiter) Allow(ctx context.Context, policy Policy, key string) (Result, error) {
	res, err := l.store.Hit(ctx, "mfa:rl:"+policy.Name+":"+key, policy.Window, policy.Limit, l.now())
	if err != nil {
		return Result{}, fmt.Errorf("failed to check rate limit %s: %w", policy.Name, err)
	}
	if !res.Allowed {
		return res, &LimitError{Policy: policy.Name, RetryAfter: res.RetryAfter}
	}
	return res, nil
}

// Key joins key parts with a separator that cannot appear in IPs.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}
