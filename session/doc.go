// Package session implements the Redis-backed session record store.
//
// # Design
//
// Records are encoded with a fixed binary schema (see encoder.go) and keyed
// under a per-domain namespace. Every identity also has a Redis set indexing
// its session IDs, used for session listing and revoke-all. The index is
// advisory: entries are lazily pruned, never trusted as proof of liveness.
//
// Deletion runs as a Lua script so the record, its CSRF token, and the index
// entry disappear atomically; a revoke that leaves any of the three behind
// would be ineffective.
//
// # Architecture boundaries
//
// This package owns key layout, encoding, and TTL mechanics. Policy —
// fingerprint binding, drain state, audit, channel resolution — lives in the
// root package.
package session
