package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL applies to records created without an explicit deadline.
	DefaultTTL = 600 * time.Second

	// DefaultOpTimeout bounds every Redis round-trip; a timeout surfaces as
	// ErrUnavailable, never as a missing session.
	DefaultOpTimeout = 3 * time.Second

	// DefaultCollection is the key namespace for session records.
	DefaultCollection = "session"

	userIndexPrefix = "user_session:"

	scanBatch = 1000
)

// removeIndexIfScript clears the user index entry only while it still points
// at the session being cleaned up. A plain DEL here could erase an entry that
// a concurrent login just re-pointed at a newer session.
const removeIndexIfScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var removeIndexIfLua = redis.NewScript(removeIndexIfScript)

// RedisOptions configures a RedisAdapter. Zero values fall back to the
// package defaults.
type RedisOptions struct {
	// Collection namespaces session record keys: "<collection>:<sessionID>".
	Collection string

	// DefaultTTL applies when Set is called with a zero deadline, and is the
	// window ResetExpiration extends to.
	DefaultTTL time.Duration

	// OpTimeout is the per-call deadline applied on top of the caller's
	// context.
	OpTimeout time.Duration

	// Logger receives structured adapter diagnostics. Nil discards.
	Logger *slog.Logger
}

// RedisAdapter is an Adapter backed by a Redis-compatible store with native
// per-key expiration. Record writes carry their TTL in a single SET so no
// reader can observe a record without its expiration. Multi-key reads go
// through pipelines rather than sequential round-trips.
type RedisAdapter struct {
	client     redis.UniversalClient
	collection string
	defaultTTL time.Duration
	opTimeout  time.Duration
	log        *slog.Logger
}

// NewRedisAdapter wraps client as a session Adapter.
func NewRedisAdapter(client redis.UniversalClient, opts RedisOptions) *RedisAdapter {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &RedisAdapter{
		client:     client,
		collection: opts.Collection,
		defaultTTL: opts.DefaultTTL,
		opTimeout:  opts.OpTimeout,
		log:        opts.Logger,
	}
}

func (r *RedisAdapter) key(sessionID string) string {
	return r.collection + ":" + sessionID
}

func (r *RedisAdapter) userKey(userID string) string {
	return userIndexPrefix + userID
}

func (r *RedisAdapter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *RedisAdapter) unavailable(op string, err error) error {
	r.log.Error("session store call failed", "op", op, "err", err)
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// fetch loads and decodes a live record. Expired records (absolute deadline in
// the past) are removed, index entry included, and report ErrNotFound.
func (r *RedisAdapter) fetch(ctx context.Context, sessionID string) (Record, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, r.unavailable("get", err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		// Corrupt value: treat as absent so the session is forced to
		// re-authenticate rather than 500 forever.
		r.log.Warn("dropping corrupt session record", "session_id", sessionID, "err", err)
		if _, delErr := r.Remove(ctx, sessionID); delErr != nil {
			return Record{}, delErr
		}
		return Record{}, ErrNotFound
	}

	if expired(rec, time.Now()) {
		if err := r.removeExpired(ctx, sessionID, rec.User.ID); err != nil {
			return Record{}, err
		}
		return Record{}, ErrNotFound
	}

	return rec, nil
}

func (r *RedisAdapter) removeExpired(ctx context.Context, sessionID, userID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return r.unavailable("del expired", err)
	}
	if userID != "" {
		if err := removeIndexIfLua.Run(ctx, r.client, []string{r.userKey(userID)}, sessionID).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return r.unavailable("clear expired index", err)
		}
	}
	r.log.Debug("lazily expired session", "session_id", sessionID, "user_id", userID)
	return nil
}

func (r *RedisAdapter) Has(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	_, err := r.fetch(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisAdapter) Get(ctx context.Context, sessionID string) (Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.fetch(ctx, sessionID)
}

func (r *RedisAdapter) Set(ctx context.Context, sessionID string, user UserPayload, expiresAt time.Time) (Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	rec := Record{User: user}
	ttl := r.defaultTTL
	if !expiresAt.IsZero() {
		rec.ExpiresAt = expiresAt
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			// Already past its deadline: logically absent from the first
			// moment, so never write it.
			if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
				return Record{}, r.unavailable("set", err)
			}
			return rec, nil
		}
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return Record{}, err
	}

	// Value and TTL land in one SET: there is no window where the record
	// exists without its expiration.
	if err := r.client.Set(ctx, r.key(sessionID), data, ttl).Err(); err != nil {
		return Record{}, r.unavailable("set", err)
	}
	return rec, nil
}

func (r *RedisAdapter) Update(ctx context.Context, sessionID string, patch UserPayload, expiresAt time.Time) (Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	current, err := r.fetch(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}

	rec := Record{User: current.User.Merge(patch), ExpiresAt: current.ExpiresAt}
	ttl := time.Duration(redis.KeepTTL)
	if !expiresAt.IsZero() {
		rec.ExpiresAt = expiresAt
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
				return Record{}, r.unavailable("update", err)
			}
			return rec, nil
		}
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return Record{}, err
	}

	if err := r.client.Set(ctx, r.key(sessionID), data, ttl).Err(); err != nil {
		return Record{}, r.unavailable("update", err)
	}
	return rec, nil
}

func (r *RedisAdapter) Remove(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	n, err := r.client.Del(ctx, r.key(sessionID)).Result()
	if err != nil {
		return false, r.unavailable("remove", err)
	}
	return n > 0, nil
}

func (r *RedisAdapter) SetUserSession(ctx context.Context, userID, sessionID string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	// The index entry carries no TTL of its own: if it expired ahead of the
	// record it points at, enforcement reads would misclassify a live
	// session as superseded. Cleanup happens through the conditional
	// removes on destroy/supersede/lazy-expiry paths.
	if err := r.client.Set(ctx, r.userKey(userID), sessionID, 0).Err(); err != nil {
		return r.unavailable("set user index", err)
	}
	return nil
}

func (r *RedisAdapter) UserActiveSession(ctx context.Context, userID string) (string, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	sid, err := r.client.Get(ctx, r.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", r.unavailable("get user index", err)
	}
	return sid, nil
}

func (r *RedisAdapter) RemoveUserSession(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	n, err := r.client.Del(ctx, r.userKey(userID)).Result()
	if err != nil {
		return false, r.unavailable("remove user index", err)
	}
	return n > 0, nil
}

func (r *RedisAdapter) RemoveUserSessionIf(ctx context.Context, userID, expectedSessionID string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	n, err := removeIndexIfLua.Run(ctx, r.client, []string{r.userKey(userID)}, expectedSessionID).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, r.unavailable("conditional remove user index", err)
	}
	return n > 0, nil
}

func (r *RedisAdapter) ResetExpiration(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	ok, err := r.client.Expire(ctx, r.key(sessionID), r.defaultTTL).Result()
	if err != nil {
		return false, r.unavailable("reset expiration", err)
	}
	return ok, nil
}

// ScanSessions enumerates live session records in the adapter's collection.
// Admin-only O(n) operation: SCAN to gather keys, then pipelined GETs instead
// of one round-trip per key. Expired and corrupt values are skipped.
func (r *RedisAdapter) ScanSessions(ctx context.Context) ([]Entry, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	pattern := r.collection + ":*"
	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, r.unavailable("scan", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return []Entry{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, r.unavailable("scan pipeline", err)
	}

	now := time.Now()
	entries := make([]Entry, 0, len(keys))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, r.unavailable("scan pipeline", err)
		}

		rec, err := decodeRecord(data)
		if err != nil {
			r.log.Warn("skipping corrupt session record in scan", "key", keys[i], "err", err)
			continue
		}
		if expired(rec, now) {
			continue
		}

		entries = append(entries, Entry{
			SessionID: keys[i][len(r.collection)+1:],
			Record:    rec,
		})
	}

	return entries, nil
}

// Ping reports point-in-time store reachability and the observed latency.
func (r *RedisAdapter) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	start := time.Now()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return time.Since(start), r.unavailable("ping", err)
	}
	return time.Since(start), nil
}
