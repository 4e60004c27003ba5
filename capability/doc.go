// Package capability implements the signed capability token codec: a
// stateless, self-expiring grant string embeddable in a URL or header,
// independent of the cookie/session machinery. Typical use is sharing a
// single resource (an uploaded image, a report) with a fixed set of
// identities for a bounded time window.
package capability
