package store

import (
	"context"
	"sync"
	"time"
)

// memoryEntry tracks the record plus the adapter-internal deadline. The
// deadline is always set (default TTL applied when the caller gave none) so
// lazy expiry has a single check path.
type memoryEntry struct {
	record   Record
	deadline time.Time
}

// MemoryAdapter is a single-process Adapter backed by ordinary maps and a
// mutex. Expiry is checked lazily on every access; an optional sweeper
// goroutine reclaims space but is never required for correctness.
type MemoryAdapter struct {
	mu         sync.Mutex
	sessions   map[string]memoryEntry
	userIndex  map[string]string
	defaultTTL time.Duration

	sweepStop chan struct{}
	sweepDone chan struct{}

	// now is swappable in tests.
	now func() time.Time
}

// NewMemoryAdapter returns an in-process adapter applying defaultTTL to
// records created without an explicit deadline. If sweepInterval is positive,
// a background sweeper reclaims expired entries; stop it with Close.
func NewMemoryAdapter(defaultTTL, sweepInterval time.Duration) *MemoryAdapter {
	m := &MemoryAdapter{
		sessions:   make(map[string]memoryEntry),
		userIndex:  make(map[string]string),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}

	if sweepInterval > 0 {
		m.sweepStop = make(chan struct{})
		m.sweepDone = make(chan struct{})
		go m.sweep(sweepInterval)
	}

	return m
}

// Close stops the sweeper, if one was started. The adapter remains usable.
func (m *MemoryAdapter) Close() error {
	if m.sweepStop != nil {
		close(m.sweepStop)
		<-m.sweepDone
		m.sweepStop = nil
	}
	return nil
}

func (m *MemoryAdapter) sweep(interval time.Duration) {
	defer close(m.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.sweepStop:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for id, e := range m.sessions {
				if !now.Before(e.deadline) {
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

// live returns the entry for sessionID if present and unexpired, deleting it
// otherwise. Callers must hold m.mu.
func (m *MemoryAdapter) live(sessionID string) (memoryEntry, bool) {
	e, ok := m.sessions[sessionID]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.deadline) {
		delete(m.sessions, sessionID)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryAdapter) Has(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.live(sessionID)
	return ok, nil
}

func (m *MemoryAdapter) Get(ctx context.Context, sessionID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(sessionID)
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(e.record), nil
}

func (m *MemoryAdapter) Set(ctx context.Context, sessionID string, user UserPayload, expiresAt time.Time) (Record, error) {
	rec := Record{User: user}
	deadline := m.now().Add(m.defaultTTL)
	if !expiresAt.IsZero() {
		rec.ExpiresAt = expiresAt
		deadline = expiresAt
	}

	m.mu.Lock()
	m.sessions[sessionID] = memoryEntry{record: cloneRecord(rec), deadline: deadline}
	m.mu.Unlock()

	return rec, nil
}

func (m *MemoryAdapter) Update(ctx context.Context, sessionID string, patch UserPayload, expiresAt time.Time) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(sessionID)
	if !ok {
		return Record{}, ErrNotFound
	}

	rec := Record{User: e.record.User.Merge(patch), ExpiresAt: e.record.ExpiresAt}
	deadline := e.deadline
	if !expiresAt.IsZero() {
		rec.ExpiresAt = expiresAt
		deadline = expiresAt
	}

	m.sessions[sessionID] = memoryEntry{record: cloneRecord(rec), deadline: deadline}
	return rec, nil
}

func (m *MemoryAdapter) Remove(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.live(sessionID)
	delete(m.sessions, sessionID)
	return existed, nil
}

func (m *MemoryAdapter) SetUserSession(ctx context.Context, userID, sessionID string) error {
	m.mu.Lock()
	m.userIndex[userID] = sessionID
	m.mu.Unlock()
	return nil
}

func (m *MemoryAdapter) UserActiveSession(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userIndex[userID], nil
}

func (m *MemoryAdapter) RemoveUserSession(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.userIndex[userID]
	delete(m.userIndex, userID)
	return existed, nil
}

func (m *MemoryAdapter) RemoveUserSessionIf(ctx context.Context, userID, expectedSessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.userIndex[userID] != expectedSessionID {
		return false, nil
	}
	delete(m.userIndex, userID)
	return true, nil
}

func (m *MemoryAdapter) ResetExpiration(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(sessionID)
	if !ok {
		return false, nil
	}

	e.deadline = m.now().Add(m.defaultTTL)
	m.sessions[sessionID] = e
	return true, nil
}

// ScanSessions lists live records. Satisfies Enumerator.
func (m *MemoryAdapter) ScanSessions(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entries := make([]Entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		if !now.Before(e.deadline) {
			continue
		}
		entries = append(entries, Entry{SessionID: id, Record: cloneRecord(e.record)})
	}
	return entries, nil
}

// Ping satisfies Pinger; the in-process adapter is always reachable.
func (m *MemoryAdapter) Ping(ctx context.Context) (time.Duration, error) {
	return 0, nil
}

// Len reports the number of stored records, expired or not. Test hook for
// sweeper coverage.
func (m *MemoryAdapter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func cloneRecord(rec Record) Record {
	out := Record{User: UserPayload{ID: rec.User.ID, SID: rec.User.SID}, ExpiresAt: rec.ExpiresAt}
	if len(rec.User.Attrs) > 0 {
		out.User.Attrs = make(map[string]any, len(rec.User.Attrs))
		for k, v := range rec.User.Attrs {
			out.User.Attrs[k] = v
		}
	}
	return out
}
