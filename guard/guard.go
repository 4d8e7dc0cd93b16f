// Package guard binds a limiter, a token manager and per-action policies
// into the object that submission flows consult before sending data.
package guard

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/brandhub-ma/securecore"
	"github.com/brandhub-ma/securecore/csrf"
	"github.com/brandhub-ma/securecore/form"
	"github.com/brandhub-ma/securecore/metrics"
	"go.uber.org/zap"
)

// retryReporter is implemented by limiters that can tell how long a
// blocked key has to wait.
type retryReporter interface {
	RetryAfter(key string, maxAttempts int, window time.Duration) time.Duration
}

// LimitedError reports a submission rejected by its action's policy.
type LimitedError struct {
	// Action is the throttled action.
	Action string

	// RetryAfter is how long until an attempt can succeed, when known.
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s, retry in %s", securecore.ErrRateLimited, e.Action, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("%s: %s", securecore.ErrRateLimited, e.Action)
}

// Unwrap lets errors.Is match securecore.ErrRateLimited.
func (e *LimitedError) Unwrap() error {
	return securecore.ErrRateLimited
}

// Guard is constructed once at startup and shared by every flow that
// submits data on behalf of the session.
type Guard struct {
	limiter       securecore.Limiter
	tokens        securecore.TokenManager
	policies      map[string]securecore.Policy
	schemas       map[string]form.Schema
	defaultPolicy securecore.Policy
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// Option configures a Guard.
type Option func(*Guard)

// WithPolicy sets the policy of one action.
func WithPolicy(action string, p securecore.Policy) Option {
	return func(g *Guard) {
		g.policies[action] = p
	}
}

// WithPolicies sets the policies of several actions.
func WithPolicies(policies map[string]securecore.Policy) Option {
	return func(g *Guard) {
		for action, p := range policies {
			g.policies[action] = p
		}
	}
}

// WithFormSchema sets the rules PrepareForm checks for action.
func WithFormSchema(action string, schema form.Schema) Option {
	return func(g *Guard) {
		g.schemas[action] = schema
	}
}

// WithDefaultPolicy sets the policy of actions without their own.
// Default: securecore.ContactFormPolicy().
func WithDefaultPolicy(p securecore.Policy) Option {
	return func(g *Guard) {
		g.defaultPolicy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the collectors decisions are counted in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// New creates a guard.
func New(limiter securecore.Limiter, tokens securecore.TokenManager, opts ...Option) *Guard {
	g := &Guard{
		limiter:       limiter,
		tokens:        tokens,
		policies:      make(map[string]securecore.Policy),
		schemas:       make(map[string]form.Schema),
		defaultPolicy: securecore.ContactFormPolicy(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the policy applied to action.
func (g *Guard) Policy(action string) securecore.Policy {
	if p, ok := g.policies[action]; ok {
		return p
	}
	return g.defaultPolicy
}

// Submit records an attempt of action. It returns the session's CSRF token
// when the attempt is allowed and a *LimitedError otherwise.
func (g *Guard) Submit(action string) (string, error) {
	return g.admit(action, action, g.Policy(action))
}

// PrepareForm records an attempt of action and adds the token to values.
// When action has a form schema, values are sanitized and validated first;
// an invalid form returns form.Errors and records no attempt.
func (g *Guard) PrepareForm(action string, values url.Values) error {
	if schema, ok := g.schemas[action]; ok {
		schema.Sanitize(values)
		if err := schema.Check(values); err != nil {
			g.metrics.ObserveInvalid(action)
			g.logger.Info("submission rejected by form rules",
				zap.String("action", action),
				zap.Error(err))
			return err
		}
	}

	token, err := g.Submit(action)
	if err != nil {
		return err
	}
	values.Set(csrf.FormField, token)
	g.metrics.ObserveAttached(action)
	return nil
}

// PrepareRequest records an attempt of action and adds the token header to req.
func (g *Guard) PrepareRequest(action string, req *http.Request) error {
	token, err := g.Submit(action)
	if err != nil {
		return err
	}
	req.Header.Set(csrf.HeaderName, token)
	g.metrics.ObserveAttached(action)
	return nil
}

// Token returns the session's current CSRF token without recording an attempt.
func (g *Guard) Token() string {
	return g.tokens.GetToken()
}

// Validate checks token against the session's active token.
func (g *Guard) Validate(token string) bool {
	return g.tokens.ValidateToken(token)
}

// Reset forgets the recorded attempts of action. Keys a Transport derives
// with a KeyFunc are reset through Transport.Reset.
func (g *Guard) Reset(action string) {
	g.limiter.Reset(action)
}

// Logout ends the session's token.
func (g *Guard) Logout() {
	g.tokens.ClearToken()
	g.logger.Debug("csrf token cleared")
}

// admit checks key under p on behalf of action.
func (g *Guard) admit(action, key string, p securecore.Policy) (string, error) {
	allowed := g.limiter.Check(key, p.MaxAttempts, p.Window)
	g.metrics.ObserveDecision(action, allowed)

	if !allowed {
		limited := &LimitedError{Action: action}
		if rr, ok := g.limiter.(retryReporter); ok {
			limited.RetryAfter = rr.RetryAfter(key, p.MaxAttempts, p.Window)
		}
		g.logger.Info("submission throttled",
			zap.String("action", action),
			zap.String("key", key),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("window", p.Window),
			zap.Duration("retry_after", limited.RetryAfter))
		return "", limited
	}

	g.logger.Debug("submission allowed",
		zap.String("action", action),
		zap.String("key", key))
	return g.tokens.GetToken(), nil
}
