// Package vault implements the credential-gated key store: passphrase-based
// initialization and unlock of a 32-byte vault key, rate limiting against
// brute-force unlock attempts, and a time-boxed in-memory session that holds
// the unlocked key.
package vault

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

const (
	maxAttempts       = 3
	baseLockoutSecs   = 60
	maxLockoutSecs    = 1800
	resetAfterSecs    = 3600
	defaultTimeoutSec = 300
)

// RateLimiter protects Unlock against brute-force passphrase guessing:
// after maxAttempts consecutive failures it locks out for an exponentially
// growing window, capped at maxLockoutSecs, and forgets the failure streak
// after resetAfterSecs of inactivity.
type RateLimiter struct {
	mu            sync.Mutex
	failedAttempts int
	lastAttempt    time.Time
	lockedUntil    time.Time
}

// NewRateLimiter returns a limiter with a clean failure history.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{}
}

// CheckLocked returns ErrRateLimited if currently in a lockout window.
func (r *RateLimiter) CheckLocked() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastAttempt.IsZero() && time.Since(r.lastAttempt) > resetAfterSecs*time.Second {
		r.failedAttempts = 0
		r.lockedUntil = time.Time{}
	}

	if !r.lockedUntil.IsZero() && time.Now().Before(r.lockedUntil) {
		remaining := time.Until(r.lockedUntil)
		return fmt.Errorf("%w: too many failed attempts, try again in %d seconds",
			nineerr.ErrRateLimited, int(remaining.Seconds())+1)
	}
	r.lockedUntil = time.Time{}
	return nil
}

// RecordFailure records a failed unlock attempt and extends the lockout
// once failedAttempts reaches maxAttempts.
func (r *RateLimiter) RecordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failedAttempts++
	r.lastAttempt = time.Now()

	if r.failedAttempts >= maxAttempts {
		multiplier := (r.failedAttempts - maxAttempts) / maxAttempts
		lockoutSecs := baseLockoutSecs << uint(multiplier)
		if lockoutSecs > maxLockoutSecs || lockoutSecs <= 0 {
			lockoutSecs = maxLockoutSecs
		}
		r.lockedUntil = time.Now().Add(time.Duration(lockoutSecs) * time.Second)
	}
}

// RecordSuccess clears the failure streak.
func (r *RateLimiter) RecordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedAttempts = 0
	r.lastAttempt = time.Time{}
	r.lockedUntil = time.Time{}
}

// LockoutRemaining returns the remaining lockout window in seconds, 0 if
// not currently locked.
func (r *RateLimiter) LockoutRemaining() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockedUntil.IsZero() || !time.Now().Before(r.lockedUntil) {
		return 0
	}
	return uint64(time.Until(r.lockedUntil).Seconds()) + 1
}

// Session holds an unlocked vault key in memory for a bounded window of
// inactivity. Close scrubs the key immediately; a finalizer is registered
// as a backstop against a caller that forgets to.
type Session struct {
	mu           sync.Mutex
	key          *[32]byte
	token        string
	lastActivity time.Time
	timeoutSecs  uint64
}

// NewSession returns a session with the given inactivity timeout. A
// timeoutSecs of 0 selects the default (300s).
func NewSession(timeoutSecs uint64) *Session {
	if timeoutSecs == 0 {
		timeoutSecs = defaultTimeoutSec
	}
	s := &Session{timeoutSecs: timeoutSecs}
	runtime.SetFinalizer(s, (*Session).Close)
	return s
}

// Start begins a session holding key. Any previously held key is scrubbed
// first. A fresh opaque session token is minted, retrievable via Token,
// that a host can use to reference "this unlock" without ever seeing the
// key itself.
func (s *Session) Start(key [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrubLocked()
	k := key
	s.key = &k
	s.token = uuid.NewString()
	s.lastActivity = time.Now()
}

// Token returns the current session's opaque identifier, or "" if no
// session is active.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isActiveLocked() {
		return ""
	}
	return s.token
}

// IsActive reports whether a key is held and the session has not timed out.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isActiveLocked()
}

func (s *Session) isActiveLocked() bool {
	if s.key == nil {
		return false
	}
	return time.Since(s.lastActivity) < time.Duration(s.timeoutSecs)*time.Second
}

// Touch refreshes the session's last-activity timestamp, if a key is held.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		s.lastActivity = time.Now()
	}
}

// GetKey returns the held key and touches the session, or a zero key and
// false, ending the session, if no key is held or it has timed out.
func (s *Session) GetKey() ([32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isActiveLocked() {
		s.scrubLocked()
		return [32]byte{}, false
	}
	s.lastActivity = time.Now()
	return *s.key, true
}

// RemainingSecs returns the seconds left before the session times out from
// inactivity, 0 if already expired or never started.
func (s *Session) RemainingSecs() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return 0
	}
	elapsed := uint64(time.Since(s.lastActivity).Seconds())
	if elapsed >= s.timeoutSecs {
		return 0
	}
	return s.timeoutSecs - elapsed
}

// SetTimeout updates the inactivity timeout for future checks.
func (s *Session) SetTimeout(secs uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeoutSecs = secs
}

// Close ends the session and scrubs the held key. Idempotent, safe to call
// from the finalizer.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrubLocked()
	return nil
}

func (s *Session) scrubLocked() {
	if s.key != nil {
		for i := range s.key {
			s.key[i] = 0
		}
	}
	s.key = nil
	s.token = ""
	s.lastActivity = time.Time{}
}
