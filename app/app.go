// Package app wires configuration into a ready-to-use Guard.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brandhub-ma/securecore/algorithms"
	"github.com/brandhub-ma/securecore/config"
	"github.com/brandhub-ma/securecore/csrf"
	"github.com/brandhub-ma/securecore/form"
	"github.com/brandhub-ma/securecore/guard"
	"github.com/brandhub-ma/securecore/metrics"
	"github.com/brandhub-ma/securecore/session"
	"github.com/brandhub-ma/securecore/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// ContactFormAction is the action whose submissions are checked against
// form.ContactSchema.
const ContactFormAction = "contact-form"

// App holds every component built from a Config.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Attempts store.Store
	Limiter  *algorithms.SlidingLog
	Sessions session.Store
	Tokens   *csrf.Manager
	Guard    *guard.Guard

	redis *redis.Client
}

// New builds the stores, the limiter, the token manager and the guard.
// A Redis session backend is pinged before New returns.
func New(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(reg),
	}

	attempts, err := newAttemptStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.Attempts = attempts

	if err := a.initSessions(); err != nil {
		attempts.Close()
		return nil, err
	}

	a.Limiter = algorithms.NewSlidingLog(a.Attempts)

	tokens, err := csrf.NewManager(a.Sessions, csrf.WithLifetime(cfg.CSRF.Lifetime))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: token manager: %w", err)
	}
	a.Tokens = tokens

	a.Guard = guard.New(a.Limiter, a.Tokens,
		guard.WithPolicies(cfg.Policies()),
		guard.WithFormSchema(ContactFormAction, form.ContactSchema()),
		guard.WithLogger(logger.Named("guard")),
		guard.WithMetrics(a.Metrics),
	)

	logger.Info("securecore ready",
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("session_backend", cfg.Session.Backend),
		zap.Duration("csrf_lifetime", cfg.CSRF.Lifetime),
		zap.Int("policies", len(cfg.Limits)))

	return a, nil
}

func newAttemptStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendLRU:
		s, err := store.NewLRUStore(cfg.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("app: attempt store: %w", err)
		}
		return s, nil
	default:
		return store.NewMemoryStoreWithConfig(store.MemoryStoreConfig{
			CleanupInterval: cfg.CleanupInterval,
			MaxEntries:      cfg.MaxEntries,
		}), nil
	}
}

func (a *App) initSessions() error {
	cfg := a.Config.Session
	if cfg.Backend != config.BackendRedis {
		a.Sessions = session.NewMemoryStore()
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("app: connect redis %s: %w", cfg.Redis.Addr, err)
	}

	rs := session.NewRedisStore(client,
		session.WithTTL(cfg.TTL),
		session.WithLogger(a.Logger.Named("session")),
		session.WithMetrics(a.Metrics),
	)
	a.redis = client
	a.Sessions = rs
	a.Logger.Info("redis session store connected",
		zap.String("addr", cfg.Redis.Addr),
		zap.String("session_id", rs.SessionID()))
	return nil
}

// Close releases the attempt store and the Redis connection.
func (a *App) Close() error {
	var errs []error
	if a.Attempts != nil {
		if err := a.Attempts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close attempt store: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close redis: %w", err))
		}
		a.redis = nil
	}
	return errors.Join(errs...)
}
