// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ratelimit

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrQuotaExceeded is returned when the daily quota is used up.
	ErrQuotaExceeded = errors.New("daily prompt quota exceeded")

	// ErrTooManyRequests is returned when requests arrive faster than the
	// burst allowance.
	ErrTooManyRequests = errors.New("too many requests")

	// ErrNoFingerprint is returned for an empty client fingerprint.
	ErrNoFingerprint = errors.New("missing client fingerprint")
)

// =============================================================================
// CONFIG
// =============================================================================

// Defaults.
const (
	DefaultDailyQuota = 3
	DefaultRate       = 1.0
	DefaultBurst      = 3
)

// Config configures a Limiter.
type Config struct {
	// DailyQuota is the number of prompts per fingerprint and model per UTC
	// day (default: 3).
	DailyQuota int

	// Rate is the sustained requests per second per fingerprint (default: 1).
	Rate float64

	// Burst is the token bucket size per fingerprint (default: 3).
	Burst int

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.DailyQuota <= 0 {
		c.DailyQuota = DefaultDailyQuota
	}
	if c.Rate <= 0 {
		c.Rate = DefaultRate
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// =============================================================================
// LIMITER
// =============================================================================

// Limiter tracks quota usage in memory. Usage resets at UTC midnight.
type Limiter struct {
	mu sync.Mutex

	quota int
	rate  rate.Limit
	burst int
	now   func() time.Time

	window   time.Time
	used     map[string]int
	limiters map[string]*rate.Limiter
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	cfg = cfg.withDefaults()
	return &Limiter{
		quota:    cfg.DailyQuota,
		rate:     rate.Limit(cfg.Rate),
		burst:    cfg.Burst,
		now:      cfg.Now,
		used:     make(map[string]int),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Quota returns the daily quota.
func (l *Limiter) Quota() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quota
}

// SetQuota changes the daily quota. Usage already counted today is kept,
// so lowering the quota can leave a fingerprint with none remaining.
func (l *Limiter) SetQuota(n int) {
	if n <= 0 {
		n = DefaultDailyQuota
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quota = n
}

func quotaKey(fingerprint, model string) string {
	return fingerprint + "\x00" + model
}

// dayStart returns UTC midnight of t's day.
func dayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// roll clears usage when a new UTC day has started. Caller holds mu.
func (l *Limiter) roll(now time.Time) {
	day := dayStart(now)
	if day.Equal(l.window) {
		return
	}
	l.window = day
	l.used = make(map[string]int)
	l.limiters = make(map[string]*rate.Limiter)
}

// Remaining returns how many prompts the fingerprint has left today for the
// model.
func (l *Limiter) Remaining(fingerprint, model string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())
	return max(l.quota-l.used[quotaKey(fingerprint, model)], 0)
}

// Consume uses one prompt. It fails with ErrQuotaExceeded when none are
// left and ErrTooManyRequests when the burst allowance is exhausted; neither
// failure uses quota.
func (l *Limiter) Consume(fingerprint, model string) error {
	if fingerprint == "" {
		return ErrNoFingerprint
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.roll(now)

	key := quotaKey(fingerprint, model)
	if l.used[key] >= l.quota {
		return ErrQuotaExceeded
	}

	lim, ok := l.limiters[fingerprint]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[fingerprint] = lim
	}
	if !lim.AllowN(now, 1) {
		return ErrTooManyRequests
	}

	l.used[key]++
	return nil
}

// Refund returns one prompt, used when the upstream provider failed before
// producing output.
func (l *Limiter) Refund(fingerprint, model string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())

	key := quotaKey(fingerprint, model)
	if l.used[key] > 0 {
		l.used[key]--
	}
}

// ResetAt returns when the current quota window ends.
func (l *Limiter) ResetAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())
	return l.window.Add(24 * time.Hour)
}
