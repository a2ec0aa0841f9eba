// Package sessionkit is a storage-agnostic session management core: it issues
// opaque session identifiers, binds them to user records, enforces optional
// single-active-session-per-user semantics, applies sliding expiration, and
// rotates sessions atomically.
//
// The package is designed for concurrent server workloads: [Coordinator] and
// [AuthFacade] methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// sessionkit is the public surface. [Coordinator] sequences storage calls and
// owns lifecycle policy; the storage contract and both adapters (in-process
// map, Redis) live in package store; cookie bindings and HTTP middleware live
// in package httpbind. The [AuthFacade] is the only layer that translates
// session failures into transport effects — redirects, cleared cookies,
// status codes.
//
// # Error taxonomy
//
// Logical absence is not an error: an unknown, expired, or superseded session
// reports [ErrUnauthenticated] and maps to "redirect to login". A backing
// store outage reports [ErrStoreUnavailable] and maps to a 5xx — it is never
// downgraded to a logout.
//
// # What this package must NOT do
//
//   - Verify credentials or evaluate authorization; it manages sessions for
//     callers that have already authenticated a user.
//   - Cache session existence in process. Every read hits the adapter, since
//     staleness would break single-session invalidation.
//   - Keep a module-level default store; all dependencies are injected.
package sessionkit
