// Package sid generates and validates opaque session identifiers.
package sid

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// Size is the raw identifier width. 32 bytes keeps ids unguessable even
// against offline enumeration of the keyspace.
const Size = 32

// ID is a raw session identifier.
type ID [Size]byte

// New returns a fresh identifier from the platform CSPRNG.
func New() (ID, error) {
	var id ID
	_, err := rand.Read(id[:])
	return id, err
}

// String renders the id as unpadded base64url, the form used in keys and
// cookies.
func (id ID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Parse validates an encoded id. Anything that is not exactly Size bytes of
// base64url is rejected before it can reach the store.
func Parse(encoded string) (ID, error) {
	var id ID

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return id, err
	}
	if len(raw) != Size {
		return id, errors.New("invalid session id size")
	}

	copy(id[:], raw)
	return id, nil
}

// Valid reports whether encoded is a well-formed session id.
func Valid(encoded string) bool {
	_, err := Parse(encoded)
	return err == nil
}
