// Package session provides session-scoped key/value storage, the Go
// counterpart of a browser tab's session storage.
package session

import "errors"

// ErrUnavailable is returned by a store that cannot persist values.
var ErrUnavailable = errors.New("securecore: session storage unavailable")

// Store is a string-to-string key/value store scoped to one session.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it is present.
	Get(key string) (string, bool)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}

// Unavailable is a Store whose backing storage is disabled or full: reads
// find nothing and writes fail.
type Unavailable struct{}

// Get always reports the key as absent.
func (Unavailable) Get(string) (string, bool) {
	return "", false
}

// Set always fails with ErrUnavailable.
func (Unavailable) Set(string, string) error {
	return ErrUnavailable
}

// Remove always fails with ErrUnavailable.
func (Unavailable) Remove(string) error {
	return ErrUnavailable
}
