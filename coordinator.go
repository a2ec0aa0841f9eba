package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sessionkit/sessionkit/internal/sid"
	"github.com/sessionkit/sessionkit/store"
)

// CreateOptions tunes a single Create call.
type CreateOptions struct {
	// ExpiresAt sets an absolute deadline for the new session. Zero applies
	// the store's default TTL and makes the session eligible for sliding
	// expiration.
	ExpiresAt time.Time

	// EnforceSingleSession enables single-session enforcement for this
	// create even when the coordinator-wide policy is off.
	EnforceSingleSession bool
}

// Coordinator sequences store calls to implement the session lifecycle:
// create, read, update, rotate, destroy. It applies single-session
// enforcement and sliding-expiration policy and is transport-agnostic — it
// never sees cookies, requests, or responses.
//
// Coordinator methods are safe for concurrent use after construction through
// [Builder.Build].
type Coordinator struct {
	adapter store.Adapter
	cfg     Config
	log     *slog.Logger
	metrics metrics
}

func (c *Coordinator) enforced(opts CreateOptions) bool {
	return opts.EnforceSingleSession || c.cfg.Session.EnforceSingleSession
}

func (c *Coordinator) storeErr(err error) error {
	c.metrics.inc(MetricStoreError)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Create persists a new session for user and returns its id, ready to be
// bound into a cookie.
//
// Under single-session enforcement the user's previously indexed session is
// invalidated first (best effort: a stale leftover session is tolerated, two
// users sharing a slot is not), and the index is pointed at the new id only
// after the record write succeeds. If indexing fails, the record is removed
// again: enforcement never leaves an unindexed session behind.
func (c *Coordinator) Create(ctx context.Context, user store.UserPayload, opts CreateOptions) (string, error) {
	if user.ID == "" {
		return "", ErrMissingUserID
	}

	enforce := c.enforced(opts)
	if enforce {
		c.invalidatePrevious(ctx, user.ID)
	}

	id, err := sid.New()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	sessionID := id.String()

	if user.SID == "" {
		user.SID = uuid.NewString()
	}

	if _, err := c.adapter.Set(ctx, sessionID, user, opts.ExpiresAt); err != nil {
		return "", c.storeErr(err)
	}

	if enforce {
		if err := c.adapter.SetUserSession(ctx, user.ID, sessionID); err != nil {
			// Roll the record back rather than leaving a session the
			// enforcement index cannot see.
			if _, rbErr := c.adapter.Remove(ctx, sessionID); rbErr != nil {
				c.log.Error("session rollback failed after index write error",
					"user_id", user.ID, "err", rbErr)
			}
			return "", c.storeErr(err)
		}
	}

	c.metrics.inc(MetricSessionCreated)
	c.log.Debug("session created", "user_id", user.ID, "logical_sid", user.SID, "enforced", enforce)
	return sessionID, nil
}

// invalidatePrevious clears the user's currently indexed session ahead of a
// new login. Every step is best effort: a failure here must not block the
// login itself.
func (c *Coordinator) invalidatePrevious(ctx context.Context, userID string) {
	previous, err := c.adapter.UserActiveSession(ctx, userID)
	if err != nil {
		c.metrics.inc(MetricStoreError)
		c.log.Warn("active-session lookup failed, proceeding with login", "user_id", userID, "err", err)
		return
	}
	if previous == "" {
		return
	}

	if _, err := c.adapter.Remove(ctx, previous); err != nil {
		c.metrics.inc(MetricStoreError)
		c.log.Warn("previous session removal failed", "user_id", userID, "err", err)
	}
	// Conditional clear: if a concurrent login already re-pointed the index,
	// leave its entry alone.
	if _, err := c.adapter.RemoveUserSessionIf(ctx, userID, previous); err != nil {
		c.metrics.inc(MetricStoreError)
		c.log.Warn("previous index clear failed", "user_id", userID, "err", err)
	}
}

// Read resolves sessionID to its user payload.
//
// Unknown, expired, malformed, and superseded ids all report
// ErrUnauthenticated; store failures report ErrStoreUnavailable so callers
// can answer 5xx instead of logging the user out. On success, sliding
// expiration (when configured, default-TTL sessions only) extends the
// deadline; a failed extension is counted and logged but never fails the
// read.
func (c *Coordinator) Read(ctx context.Context, sessionID string) (store.UserPayload, error) {
	if !sid.Valid(sessionID) {
		c.metrics.inc(MetricReadMiss)
		return store.UserPayload{}, ErrUnauthenticated
	}

	rec, err := c.adapter.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.metrics.inc(MetricReadMiss)
			return store.UserPayload{}, ErrUnauthenticated
		}
		return store.UserPayload{}, c.storeErr(err)
	}

	if c.cfg.Session.EnforceSingleSession {
		active, err := c.adapter.UserActiveSession(ctx, rec.User.ID)
		if err != nil {
			// Cannot prove the session still owns its slot; failing open
			// would break single-session semantics.
			return store.UserPayload{}, c.storeErr(err)
		}
		if active != sessionID {
			c.supersede(ctx, sessionID, rec.User.ID)
			return store.UserPayload{}, ErrUnauthenticated
		}
	}

	if c.cfg.Session.SlidingExpiration && rec.ExpiresAt.IsZero() {
		if _, err := c.adapter.ResetExpiration(ctx, sessionID); err != nil {
			c.metrics.inc(MetricTouchFailed)
			c.log.Warn("sliding expiration touch failed", "err", err)
		}
	}

	c.metrics.inc(MetricReadHit)
	return rec.User, nil
}

// supersede removes a session that lost its single-session slot to a newer
// login. Best effort; the record expires on its own if removal fails.
func (c *Coordinator) supersede(ctx context.Context, sessionID, userID string) {
	c.metrics.inc(MetricSuperseded)
	if _, err := c.adapter.Remove(ctx, sessionID); err != nil {
		c.metrics.inc(MetricStoreError)
		c.log.Warn("superseded session removal failed", "user_id", userID, "err", err)
	}
	c.log.Debug("session superseded", "user_id", userID)
}

// Update merges patch into the session's payload in place, keeping the same
// id. A non-zero expiresAt replaces the session's deadline. ErrUnauthenticated
// if the session does not exist; the store is left unchanged in that case.
func (c *Coordinator) Update(ctx context.Context, sessionID string, patch store.UserPayload, expiresAt time.Time) (store.UserPayload, error) {
	if !sid.Valid(sessionID) {
		return store.UserPayload{}, ErrUnauthenticated
	}

	rec, err := c.adapter.Update(ctx, sessionID, patch, expiresAt)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.UserPayload{}, ErrUnauthenticated
		}
		return store.UserPayload{}, c.storeErr(err)
	}
	return rec.User, nil
}

// Rotate replaces the session's transport id while preserving the logical
// session: the new record carries the merged payload (same logical-session
// SID) and the old id is destroyed only after the new one is durably written,
// so enforcement never passes through a zero-session state.
//
// A non-zero newExpiresAt sets the new deadline; otherwise a default-TTL
// session starts a fresh TTL window and an absolute-deadline session keeps
// its original deadline.
func (c *Coordinator) Rotate(ctx context.Context, sessionID string, patch store.UserPayload, newExpiresAt time.Time) (string, error) {
	if !sid.Valid(sessionID) {
		return "", ErrUnauthenticated
	}

	rec, err := c.adapter.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnauthenticated
		}
		return "", c.storeErr(err)
	}

	enforce := c.cfg.Session.EnforceSingleSession
	if enforce {
		active, err := c.adapter.UserActiveSession(ctx, rec.User.ID)
		if err != nil {
			return "", c.storeErr(err)
		}
		if active != sessionID {
			c.supersede(ctx, sessionID, rec.User.ID)
			return "", ErrUnauthenticated
		}
	}

	merged := rec.User.Merge(patch)

	expiresAt := newExpiresAt
	if expiresAt.IsZero() {
		expiresAt = rec.ExpiresAt
	}

	id, err := sid.New()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	newID := id.String()

	if _, err := c.adapter.Set(ctx, newID, merged, expiresAt); err != nil {
		// Old session untouched; the caller keeps a valid id.
		return "", c.storeErr(err)
	}

	if enforce {
		if err := c.adapter.SetUserSession(ctx, merged.ID, newID); err != nil {
			if _, rbErr := c.adapter.Remove(ctx, newID); rbErr != nil {
				c.log.Error("rotation rollback failed after index write error",
					"user_id", merged.ID, "err", rbErr)
			}
			return "", c.storeErr(err)
		}
	}

	if _, err := c.adapter.Remove(ctx, sessionID); err != nil {
		// The new session is durable and indexed; losing the old-record
		// delete means the store is down, so the old id cannot be read
		// either. Report the outage but keep the new id as the session.
		c.metrics.inc(MetricStoreError)
		c.log.Error("old session removal failed during rotation", "user_id", merged.ID, "err", err)
	}

	c.metrics.inc(MetricRotated)
	c.log.Debug("session rotated", "user_id", merged.ID, "logical_sid", merged.SID)
	return newID, nil
}

// Destroy removes the session and, when it owned the user's single-session
// slot, the index entry. Idempotent: destroying an unknown id is a no-op.
// Order matters: the owning user is read first, then the record goes, then
// the index entry — conditionally, so a newer session's entry survives.
func (c *Coordinator) Destroy(ctx context.Context, sessionID string) error {
	if !sid.Valid(sessionID) {
		return nil
	}

	rec, err := c.adapter.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return c.storeErr(err)
	}

	if _, err := c.adapter.Remove(ctx, sessionID); err != nil {
		return c.storeErr(err)
	}

	if _, err := c.adapter.RemoveUserSessionIf(ctx, rec.User.ID, sessionID); err != nil {
		return c.storeErr(err)
	}

	c.metrics.inc(MetricDestroyed)
	c.log.Debug("session destroyed", "user_id", rec.User.ID)
	return nil
}

// Sessions lists live sessions for administrative surfaces. Supported only
// when the adapter implements [store.Enumerator].
func (c *Coordinator) Sessions(ctx context.Context) ([]store.Entry, error) {
	enum, ok := c.adapter.(store.Enumerator)
	if !ok {
		return nil, ErrEnumerationUnsupported
	}

	entries, err := enum.ScanSessions(ctx)
	if err != nil {
		return nil, c.storeErr(err)
	}
	return entries, nil
}

// Ping reports store reachability when the adapter supports it, for readiness
// probes. Adapters without a health check report as always reachable.
func (c *Coordinator) Ping(ctx context.Context) (time.Duration, error) {
	p, ok := c.adapter.(store.Pinger)
	if !ok {
		return 0, nil
	}

	latency, err := p.Ping(ctx)
	if err != nil {
		return latency, c.storeErr(err)
	}
	return latency, nil
}
