package sessionkit

import "errors"

var (
	// ErrUnauthenticated reports that no valid session backs the request:
	// the id is unknown, expired, malformed, or was superseded by a newer
	// login. It is the expected failure of Read and is never logged as an
	// error.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStoreUnavailable reports that the backing store failed or timed
	// out. It must surface as a server-side failure; treating it as a
	// logged-out user would silently destroy sessions during outages.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrMissingUserID reports a payload without the required stable user
	// identifier.
	ErrMissingUserID = errors.New("user payload missing id")

	// ErrEnumerationUnsupported reports that the configured adapter cannot
	// list sessions.
	ErrEnumerationUnsupported = errors.New("adapter does not support session enumeration")
)
