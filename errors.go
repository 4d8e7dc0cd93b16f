package securecore

import "errors"

// Error variables for core operations.
var (
	// ErrInvalidMaxAttempts is returned when a policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("securecore: max attempts must be positive")

	// ErrInvalidWindow is returned when a policy window is not positive.
	ErrInvalidWindow = errors.New("securecore: window must be positive")

	// ErrInvalidLifetime is returned when a token lifetime is not positive.
	ErrInvalidLifetime = errors.New("securecore: token lifetime must be positive")

	// ErrRateLimited is returned when an action exceeded its policy.
	ErrRateLimited = errors.New("securecore: too many attempts")
)
