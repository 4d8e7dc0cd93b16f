// Package csrf manages the anti-forgery token of one session.
//
// The manager keeps a single token and its expiry in a session.Store. The
// check performed by ValidateToken is a local convenience: a server must
// verify the submitted token against a value it issued or can verify itself.
package csrf

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/brandhub-ma/securecore"
	"github.com/brandhub-ma/securecore/session"
)

const (
	// TokenKey is the session key holding the token.
	TokenKey = "csrf_token"

	// ExpiryKey is the session key holding the expiry in Unix milliseconds.
	ExpiryKey = "csrf_token_expiry"

	// FormField is the form field a submission carries the token in.
	FormField = "csrf_token"

	// HeaderName is the request header a submission carries the token in.
	HeaderName = "X-CSRF-Token"

	// TokenBytes is the amount of entropy in a token.
	TokenBytes = 32

	// DefaultLifetime is how long a token stays valid.
	DefaultLifetime = time.Hour
)

// Manager issues and checks the session's token.
type Manager struct {
	mu       sync.Mutex
	store    session.Store
	random   RandomSource
	clock    securecore.Clock
	lifetime time.Duration
}

var _ securecore.TokenManager = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithLifetime sets how long a minted token stays valid.
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) {
		m.lifetime = d
	}
}

// WithClock sets the clock used for expiry.
func WithClock(clock securecore.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithRandomSource sets the entropy source. It must be cryptographically secure
// outside of tests.
func WithRandomSource(src RandomSource) Option {
	return func(m *Manager) {
		if src != nil {
			m.random = src
		}
	}
}

// NewManager creates a token manager backed by store.
func NewManager(store session.Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:    store,
		random:   CryptoSource(),
		clock:    securecore.SystemClock,
		lifetime: DefaultLifetime,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.lifetime <= 0 {
		return nil, securecore.ErrInvalidLifetime
	}
	return m, nil
}

// GetToken returns the active token, minting and storing a new one when none
// is stored or the stored one has expired. If the store cannot persist the
// new token it is still returned, so every call mints a fresh one and
// ValidateToken never succeeds.
func (m *Manager) GetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if token, expiry, ok := m.load(); ok && now.Before(expiry) {
		return token
	}

	token := hex.EncodeToString(readToken(m.random))
	expiry := now.Add(m.lifetime)

	if err := m.store.Set(TokenKey, token); err != nil {
		return token
	}
	if err := m.store.Set(ExpiryKey, strconv.FormatInt(expiry.UnixMilli(), 10)); err != nil {
		_ = m.store.Remove(TokenKey)
	}
	return token
}

// ValidateToken reports whether candidate matches the active token. A stored
// token found expired is cleared.
func (m *Manager) ValidateToken(candidate string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, expiry, ok := m.load()
	if !ok {
		return false
	}
	if !m.clock().Before(expiry) {
		m.clearLocked()
		return false
	}
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1
}

// ClearToken removes the active token, e.g. on logout.
func (m *Manager) ClearToken() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()
}

// Expiry returns when the active token expires. It reports false when no
// token is stored.
func (m *Manager) Expiry() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, expiry, ok := m.load()
	return expiry, ok
}

// AddToForm sets the token field on form and returns it.
func (m *Manager) AddToForm(form url.Values) url.Values {
	if form == nil {
		form = url.Values{}
	}
	form.Set(FormField, m.GetToken())
	return form
}

// Headers returns the headers carrying the token.
func (m *Manager) Headers() http.Header {
	h := http.Header{}
	h.Set(HeaderName, m.GetToken())
	return h
}

// load reads the stored record. A token without a parseable expiry counts
// as absent.
func (m *Manager) load() (string, time.Time, bool) {
	token, ok := m.store.Get(TokenKey)
	if !ok || token == "" {
		return "", time.Time{}, false
	}
	raw, ok := m.store.Get(ExpiryKey)
	if !ok {
		return "", time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return token, time.UnixMilli(ms), true
}

func (m *Manager) clearLocked() {
	_ = m.store.Remove(TokenKey)
	_ = m.store.Remove(ExpiryKey)
}
