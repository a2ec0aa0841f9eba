// Package store defines the storage contract for session persistence and ships
// the two supported adapters: an in-process map for tests and single-node
// deployments, and a Redis adapter for shared multi-process deployments.
//
// # Model
//
// A session is a [Record] keyed by an opaque session id. When single-session
// enforcement is active, a secondary index maps each user id to that user's
// currently active session id. The index is bookkeeping, never a source of
// truth for session content.
//
// # Expiration
//
// Expiry is lazy: an expired record reports not-found on access and is removed
// as a side effect. Adapters may additionally reclaim space eagerly (Redis
// native TTL, the memory adapter's optional sweeper) but correctness never
// depends on it.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT generate session ids, apply
// sliding-expiration policy, or decide authentication outcomes — those
// responsibilities belong to the coordinator in the root package.
package store
