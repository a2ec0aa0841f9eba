package sessionkit

import (
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sessionkit/sessionkit/store"
)

// Builder assembles a Coordinator. Construction is allocation-only; no store
// I/O happens until the first Coordinator call.
//
// There is deliberately no package-level default instance: the adapter is an
// explicit dependency and its lifecycle belongs to whoever composes the
// service.
type Builder struct {
	config  Config
	adapter store.Adapter
	redis   redis.UniversalClient
	logger  *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithAdapter supplies a ready storage adapter. Takes precedence over
// WithRedis.
func (b *Builder) WithAdapter(adapter store.Adapter) *Builder {
	b.adapter = adapter
	return b
}

// WithRedis supplies a Redis client; Build wraps it in a RedisAdapter using
// the session configuration's collection, TTL, and timeout.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMemoryStore configures an in-process adapter with the session
// configuration's default TTL. Intended for tests and single-process hosts.
// Call it after WithConfig so the adapter picks up the configured TTL.
func (b *Builder) WithMemoryStore() *Builder {
	b.adapter = store.NewMemoryAdapter(b.config.Session.DefaultTTL, 0)
	return b
}

// WithLogger supplies a structured logger. Without one the coordinator stays
// silent.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and returns the Coordinator. A Builder is
// single-use.
func (b *Builder) Build() (*Coordinator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	adapter := b.adapter
	if adapter == nil {
		if b.redis == nil {
			return nil, errors.New("storage adapter or redis client required")
		}
		adapter = store.NewRedisAdapter(b.redis, store.RedisOptions{
			Collection: b.config.Session.Collection,
			DefaultTTL: b.config.Session.DefaultTTL,
			OpTimeout:  b.config.Session.OpTimeout,
			Logger:     logger,
		})
	}

	b.built = true
	return &Coordinator{
		adapter: adapter,
		cfg:     b.config,
		log:     logger,
	}, nil
}
