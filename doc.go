// Package authgate is the session and credential verification engine for a
// multi-role web platform. It owns session lifecycle (create, validate,
// renew, revoke) against a shared Redis store, double-submit CSRF
// protection, device-fingerprint binding, and the dual-channel credential
// resolution protocol: cookie-backed sessions first, signed bearer tokens
// as the fallback for clients that cannot present cookies.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. Redis is the single source of truth; there is no
// authoritative in-process session cache.
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (VerifiedIdentity, SessionInfo, audit sinks). Key layout,
// record encoding, and TTL mechanics live in session/; bearer token signing
// in jwt/; the stateless capability grant codec in capability/; HTTP
// adapters in middleware/.
//
// # Security invariants
//
//   - A credential valid in one role domain (user, admin, service) is never
//     accepted in another: each domain has its own key namespace, and bearer
//     tokens carry a domain claim checked on every verification.
//   - Store unavailability fails closed. No validation path ever
//     authenticates on a Redis outage or a corrupt record.
//   - Revocation is a hard delete of the record, its CSRF token, and its
//     index entry; a revoked session id cannot validate afterwards.
package authgate
