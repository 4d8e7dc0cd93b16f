/*
Package securecore provides the client-side security utilities used before a
state-changing action leaves the BrandHub.ma site: an attempt limiter and an
anti-forgery (CSRF) token manager.

# Architecture

The library is organized into several components:
  - Core: Defines the Limiter and TokenManager contracts, Policy and Clock.
  - Algorithms: Implements the sliding log limiter (algorithms.SlidingLog).
  - Store: Holds per-key attempt logs (in-memory with TTL cleanup, or LRU bounded).
  - Session: Session-scoped key/value storage for the token (memory, Redis).
  - CSRF: The token manager and its secure random source.
  - Form: Input sanitization and field rules checked before a submission.
  - Guard: Binds a limiter, a token manager and per-action policies, and
    exposes them to form flows and outbound HTTP clients.

# Sliding log

The limiter keeps, per key, the timestamps of permitted attempts. An attempt
is permitted when fewer than MaxAttempts timestamps fall inside the trailing
window. Denied attempts are not recorded, so a blocked caller becomes
unblocked exactly when its oldest counted attempt leaves the window.

	limiter := algorithms.NewSlidingLog(store.NewMemoryStore())
	if !limiter.Check("contact-form", 5, time.Hour) {
	    // too many attempts
	}

# CSRF tokens

One token per session, 32 bytes from crypto/rand rendered as 64 hex
characters, valid for an hour by default:

	tokens, _ := csrf.NewManager(session.NewMemoryStore())
	form := tokens.AddToForm(url.Values{})

The token is checked locally by ValidateToken as a convenience only. It is not
a security boundary: a server must verify a value it issued or can verify
independently.

# Guard

guard.Guard is the application-context object a host constructs once at
startup and passes to the flows that submit data:

	g := guard.New(limiter, tokens,
	    guard.WithPolicy("contact-form", securecore.ContactFormPolicy()),
	)
	if err := g.PrepareForm("contact-form", form); errors.Is(err, securecore.ErrRateLimited) {
	    // surface "too many attempts"
	}

guard.Transport applies the same checks to outgoing *http.Request values so a
throttled submission never reaches the network.
*/
package securecore
