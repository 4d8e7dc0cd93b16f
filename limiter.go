// Package securecore provides the security utility core of the BrandHub.ma
// site: a sliding-window attempt limiter and a session-scoped CSRF token
// manager, plus the contracts shared by their implementations.
package securecore

import (
	"time"
)

// Limiter defines the attempt limiting interface.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Check records an attempt for key and reports whether the number of
	// attempts within the trailing window, including this one, is at most
	// maxAttempts. A denied attempt is not recorded.
	Check(key string, maxAttempts int, window time.Duration) bool

	// Reset discards every recorded attempt for key.
	Reset(key string)
}

// TokenManager defines the anti-forgery token lifecycle for one session.
type TokenManager interface {
	// GetToken returns the active token, minting a new one when none is
	// stored or the stored one has expired.
	GetToken() string

	// ValidateToken reports whether candidate equals the active, unexpired token.
	ValidateToken(candidate string) bool

	// ClearToken removes the active token.
	ClearToken()
}

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// Policy is an "at most MaxAttempts per Window" rule for one action.
type Policy struct {
	// MaxAttempts is the number of attempts allowed per window.
	MaxAttempts int

	// Window is the trailing observation window.
	Window time.Duration
}

// ContactFormPolicy returns the contact form policy: 5 submissions per hour.
func ContactFormPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Window:      time.Hour,
	}
}

// Validate checks if the policy is usable.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if p.Window <= 0 {
		return ErrInvalidWindow
	}
	return nil
}

// Allow checks key against l under this policy.
func (p Policy) Allow(l Limiter, key string) bool {
	return l.Check(key, p.MaxAttempts, p.Window)
}
