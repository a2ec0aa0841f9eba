package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// persisted is the wire shape of a session value: the user payload plus the
// absolute deadline, when the caller supplied one. Default-TTL records omit
// the expiry and rely on the store's native TTL.
type persisted struct {
	User    UserPayload `json:"user"`
	Expires int64       `json:"expires,omitempty"`
}

func encodeRecord(rec Record) ([]byte, error) {
	p := persisted{User: rec.User}
	if !rec.ExpiresAt.IsZero() {
		p.Expires = rec.ExpiresAt.Unix()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode session record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return Record{}, fmt.Errorf("decode session record: %w", err)
	}

	rec := Record{User: p.User}
	if p.Expires != 0 {
		rec.ExpiresAt = time.Unix(p.Expires, 0)
	}
	return rec, nil
}

// expired reports whether a decoded record carries an absolute deadline that
// has already passed. Default-TTL records (zero ExpiresAt) are never expired
// by this check; their lifetime is owned by the store's TTL bookkeeping.
func expired(rec Record, now time.Time) bool {
	return !rec.ExpiresAt.IsZero() && !now.Before(rec.ExpiresAt)
}
