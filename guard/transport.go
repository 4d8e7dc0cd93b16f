package guard

import (
	"net/http"

	"github.com/brandhub-ma/securecore"
	"github.com/brandhub-ma/securecore/csrf"
)

// KeyFunc derives the limiter key suffix from an outgoing request, for
// example to throttle per recipient instead of per action.
type KeyFunc func(r *http.Request) string

// Endpoint binds outgoing requests to an action.
type Endpoint struct {
	// Path is the URL path to match.
	// Supports exact match and prefix match (ending with *).
	Path string

	// Methods are the HTTP methods to match.
	// Empty means all methods.
	Methods []string

	// Action names the throttled action. Default: Path.
	Action string

	// Policy overrides the guard's policy for Action when set.
	Policy securecore.Policy
}

// Transport is an http.RoundTripper that runs matching requests through a
// Guard before they reach the network. Throttled requests fail with a
// *LimitedError. State-changing requests carry the CSRF token header.
type Transport struct {
	guard        *Guard
	endpoints    []Endpoint
	base         http.RoundTripper
	keyFunc      KeyFunc
	excludePaths []string
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithBase sets the RoundTripper that sends admitted requests.
// Default: http.DefaultTransport.
func WithBase(rt http.RoundTripper) TransportOption {
	return func(t *Transport) {
		if rt != nil {
			t.base = rt
		}
	}
}

// WithKeyFunc sets a custom key extraction function.
func WithKeyFunc(fn KeyFunc) TransportOption {
	return func(t *Transport) {
		t.keyFunc = fn
	}
}

// WithExcludePaths sets paths that always bypass the guard.
func WithExcludePaths(paths ...string) TransportOption {
	return func(t *Transport) {
		t.excludePaths = paths
	}
}

// NewTransport creates a guarded transport. The first endpoint matching a
// request applies; unmatched requests pass through untouched.
func NewTransport(g *Guard, endpoints []Endpoint, opts ...TransportOption) *Transport {
	t := &Transport{
		guard:     g,
		endpoints: make([]Endpoint, 0, len(endpoints)),
		base:      http.DefaultTransport,
	}
	for _, ep := range endpoints {
		if ep.Action == "" {
			ep.Action = ep.Path
		}
		t.endpoints = append(t.endpoints, ep)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	cleanPath := fastPathClean(req.URL.Path)

	for _, pattern := range t.excludePaths {
		if matchPath(cleanPath, pattern) {
			return t.base.RoundTrip(req)
		}
	}

	ep, ok := t.match(cleanPath, req.Method)
	if !ok {
		return t.base.RoundTrip(req)
	}

	policy := ep.Policy
	if policy == (securecore.Policy{}) {
		policy = t.guard.Policy(ep.Action)
	}

	token, err := t.guard.admit(ep.Action, t.key(ep, req), policy)
	if err != nil {
		// A RoundTripper must close the body even when it fails.
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	if !isStateChanging(req.Method) {
		return t.base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	out.Header.Set(csrf.HeaderName, token)
	t.guard.metrics.ObserveAttached(ep.Action)
	return t.base.RoundTrip(out)
}

// Reset forgets the attempts recorded for the limiter key req maps to,
// including the KeyFunc suffix. Requests matching no endpoint are ignored.
func (t *Transport) Reset(req *http.Request) {
	ep, ok := t.match(fastPathClean(req.URL.Path), req.Method)
	if !ok {
		return
	}
	t.guard.limiter.Reset(t.key(ep, req))
}

// key returns the limiter key of req under ep.
func (t *Transport) key(ep Endpoint, req *http.Request) string {
	if t.keyFunc == nil {
		return ep.Action
	}
	return ep.Action + ":" + t.keyFunc(req)
}

// match returns the first endpoint matching the request.
func (t *Transport) match(cleanPath, method string) (Endpoint, bool) {
	for _, ep := range t.endpoints {
		if !matchPath(cleanPath, ep.Path) {
			continue
		}
		if len(ep.Methods) == 0 {
			return ep, true
		}
		for _, m := range ep.Methods {
			if m == method {
				return ep, true
			}
		}
	}
	return Endpoint{}, false
}

// isStateChanging reports whether method can modify server state.
func isStateChanging(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}
