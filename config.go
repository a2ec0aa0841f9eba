package sessionkit

import (
	"errors"
	"time"

	"github.com/sessionkit/sessionkit/store"
)

// SessionConfig controls session lifecycle policy.
type SessionConfig struct {
	// Collection namespaces record keys in the store.
	Collection string

	// DefaultTTL applies to sessions created without an explicit deadline.
	DefaultTTL time.Duration

	// SlidingExpiration extends a default-TTL session's deadline on every
	// successful read. Sessions with a caller-supplied absolute deadline
	// are never extended.
	SlidingExpiration bool

	// EnforceSingleSession keeps at most one active session per user:
	// a new login invalidates the user's previous session.
	EnforceSingleSession bool

	// OpTimeout bounds each store call made by the Redis adapter.
	OpTimeout time.Duration
}

// FacadeConfig controls how authentication failures translate to redirects.
type FacadeConfig struct {
	// LoginPath is the redirect target for unauthenticated requests.
	LoginPath string

	// RedirectParam is the query parameter carrying the originally
	// requested path, so login can send the user back.
	RedirectParam string
}

// Config is the top-level configuration consumed by the Builder.
type Config struct {
	Session SessionConfig
	Facade  FacadeConfig
}

// DefaultConfig returns the reference configuration: 10-minute sliding
// sessions without single-session enforcement.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Collection:        store.DefaultCollection,
			DefaultTTL:        store.DefaultTTL,
			SlidingExpiration: true,
			OpTimeout:         store.DefaultOpTimeout,
		},
		Facade: FacadeConfig{
			LoginPath:     "/login",
			RedirectParam: "redirectTo",
		},
	}
}

// Validate rejects configurations the coordinator cannot run with.
func (c Config) Validate() error {
	if c.Session.Collection == "" {
		return errors.New("session collection required")
	}
	if c.Session.DefaultTTL <= 0 {
		return errors.New("session default TTL must be positive")
	}
	if c.Session.OpTimeout < 0 {
		return errors.New("session op timeout must not be negative")
	}
	if c.Facade.LoginPath == "" {
		return errors.New("facade login path required")
	}
	if c.Facade.RedirectParam == "" {
		return errors.New("facade redirect parameter required")
	}
	return nil
}
