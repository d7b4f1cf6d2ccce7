// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/lootledger/lootledger/internal/logging"
)

// ErrAccountLocked is returned when login is blocked by the lockout policy.
var ErrAccountLocked = errors.New("account temporarily locked due to too many failed attempts")

// LockoutConfig tunes the failed-login lockout policy.
type LockoutConfig struct {
	// MaxAttempts is the number of failures before a lockout.
	MaxAttempts int

	// BaseDuration is the first lockout period. Each subsequent lockout
	// doubles it up to MaxDuration.
	BaseDuration time.Duration
	MaxDuration  time.Duration
}

// DefaultLockoutConfig returns the standard policy.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts:  5,
		BaseDuration: 15 * time.Minute,
		MaxDuration:  24 * time.Hour,
	}
}

type lockoutEntry struct {
	failedAttempts int
	lockoutCount   int
	lastAttempt    time.Time
	lockedUntil    time.Time
}

func (e *lockoutEntry) isLocked(now time.Time) bool {
	return now.Before(e.lockedUntil)
}

// Lockout tracks failed login attempts per subject (username or client IP)
// in memory and locks subjects out with exponential backoff. A single-node
// deployment has exactly one admin account, so in-process state suffices.
type Lockout struct {
	cfg     LockoutConfig
	mu      sync.Mutex
	entries map[string]*lockoutEntry
}

// NewLockout builds a lockout tracker. Zero-valued config fields fall back
// to the defaults.
func NewLockout(cfg LockoutConfig) *Lockout {
	def := DefaultLockoutConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDuration <= 0 {
		cfg.BaseDuration = def.BaseDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = def.MaxDuration
	}
	return &Lockout{cfg: cfg, entries: make(map[string]*lockoutEntry)}
}

// CheckLocked reports whether the subject is locked and for how much longer.
func (l *Lockout) CheckLocked(subject string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[subject]
	if !ok {
		return false, 0
	}
	now := time.Now()
	if !entry.isLocked(now) {
		return false, 0
	}
	return true, entry.lockedUntil.Sub(now)
}

// RecordFailure counts a failed attempt and returns whether the subject is
// now locked out.
func (l *Lockout) RecordFailure(subject string) (locked bool, remaining time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[subject]
	if !ok {
		entry = &lockoutEntry{}
		l.entries[subject] = entry
	}

	now := time.Now()
	if entry.isLocked(now) {
		return true, entry.lockedUntil.Sub(now)
	}

	entry.failedAttempts++
	entry.lastAttempt = now
	if entry.failedAttempts < l.cfg.MaxAttempts {
		return false, 0
	}

	duration := l.lockoutDuration(entry.lockoutCount)
	entry.lockedUntil = now.Add(duration)
	entry.lockoutCount++
	entry.failedAttempts = 0

	logging.Warn().
		Str("subject", subject).
		Dur("duration", duration).
		Int("lockout_count", entry.lockoutCount).
		Msg("account locked")

	return true, duration
}

// RecordSuccess clears the subject's failure history after a login.
func (l *Lockout) RecordSuccess(subject string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, subject)
}

// Sweep discards stale entries that are unlocked and have been quiet for the
// retention window. Called periodically so the map does not grow unbounded
// under scanner traffic.
func (l *Lockout) Sweep(retention time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	threshold := now.Add(-retention)
	removed := 0
	for subject, entry := range l.entries {
		if !entry.isLocked(now) && entry.lastAttempt.Before(threshold) {
			delete(l.entries, subject)
			removed++
		}
	}
	return removed
}

func (l *Lockout) lockoutDuration(lockoutCount int) time.Duration {
	duration := l.cfg.BaseDuration
	for i := 0; i < lockoutCount; i++ {
		duration *= 2
		if duration >= l.cfg.MaxDuration {
			return l.cfg.MaxDuration
		}
	}
	return duration
}
