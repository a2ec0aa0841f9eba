package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports logical absence: no record exists for the given id, or
// the record has expired. It is an expected outcome, not a failure.
var ErrNotFound = errors.New("session not found")

// ErrUnavailable reports that the backing store could not be reached or timed
// out. Callers must surface it as a server-side failure, never as "logged out".
var ErrUnavailable = errors.New("session store unavailable")

// ErrConflict reports that a conditional index write lost a race with a
// concurrent writer. It is internal to rotation and index cleanup and is never
// surfaced to the transport layer.
var ErrConflict = errors.New("session index conflict")

// UserPayload is the application-defined value bound to a session. ID is the
// stable user identifier and is required. SID is a logical-session family id
// assigned at creation and preserved across rotation, so audit trails can
// follow one login through any number of transport ids. Attrs carries
// everything else the host application wants to persist.
type UserPayload struct {
	ID    string         `json:"id"`
	SID   string         `json:"sid,omitempty"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Merge returns a copy of p with the patch applied: non-empty ID/SID override,
// Attrs keys are merged per key. Neither receiver nor patch is mutated.
func (p UserPayload) Merge(patch UserPayload) UserPayload {
	out := UserPayload{ID: p.ID, SID: p.SID}
	if patch.ID != "" {
		out.ID = patch.ID
	}
	if patch.SID != "" {
		out.SID = patch.SID
	}
	if len(p.Attrs) == 0 && len(patch.Attrs) == 0 {
		return out
	}

	out.Attrs = make(map[string]any, len(p.Attrs)+len(patch.Attrs))
	for k, v := range p.Attrs {
		out.Attrs[k] = v
	}
	for k, v := range patch.Attrs {
		out.Attrs[k] = v
	}
	return out
}

// Record is a persisted session. A zero ExpiresAt means the record lives under
// the store's default TTL (sliding-expiration eligible); a non-zero ExpiresAt
// is a caller-supplied absolute deadline.
type Record struct {
	User      UserPayload
	ExpiresAt time.Time
}

// Entry pairs a session id with its record, for administrative enumeration.
type Entry struct {
	SessionID string
	Record    Record
}

// Adapter is the persistence contract the coordinator runs against.
//
// Every method reports logical absence via ErrNotFound (or a false/empty
// result where documented) and infrastructure failure via ErrUnavailable;
// adapters never panic across this boundary. Writes are atomic per record: no
// reader ever observes a partially written record.
type Adapter interface {
	// Has reports whether an unexpired record exists. An expired record
	// reports false and is removed as a side effect.
	Has(ctx context.Context, sessionID string) (bool, error)

	// Get returns the record for sessionID, or ErrNotFound if absent or
	// expired (expired records are removed as a side effect).
	Get(ctx context.Context, sessionID string) (Record, error)

	// Set creates or fully overwrites the record. A zero expiresAt applies
	// the store's default TTL.
	Set(ctx context.Context, sessionID string, user UserPayload, expiresAt time.Time) (Record, error)

	// Update merges patch into the existing payload. ErrNotFound if no
	// unexpired record exists; the store is left unchanged in that case.
	// A zero expiresAt preserves the record's current deadline.
	Update(ctx context.Context, sessionID string, patch UserPayload, expiresAt time.Time) (Record, error)

	// Remove deletes the record. Idempotent; reports whether one existed.
	Remove(ctx context.Context, sessionID string) (bool, error)

	// SetUserSession points the user's active-session index entry at
	// sessionID, overwriting any previous value.
	SetUserSession(ctx context.Context, userID, sessionID string) error

	// UserActiveSession returns the indexed session id for userID, or ""
	// when the user has no indexed session.
	UserActiveSession(ctx context.Context, userID string) (string, error)

	// RemoveUserSession clears the index entry unconditionally. Idempotent;
	// reports whether an entry existed.
	RemoveUserSession(ctx context.Context, userID string) (bool, error)

	// RemoveUserSessionIf clears the index entry only while it still points
	// at expectedSessionID, so a stale cleanup branch can never clobber an
	// entry that has been re-pointed at a newer session. Reports whether
	// the entry was removed.
	RemoveUserSessionIf(ctx context.Context, userID, expectedSessionID string) (bool, error)

	// ResetExpiration pushes the record's deadline to now + default TTL
	// without touching the payload. Reports whether a record existed.
	ResetExpiration(ctx context.Context, sessionID string) (bool, error)
}

// Enumerator is implemented by adapters that support administrative listing
// of live sessions. Listing is O(n) and must stay off request hot paths.
type Enumerator interface {
	ScanSessions(ctx context.Context) ([]Entry, error)
}

// Pinger is implemented by adapters that can report backing-store
// reachability, for readiness probes.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}
