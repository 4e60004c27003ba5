// Package jwt wraps github.com/golang-jwt/jwt/v5 behind a Manager that
// mints and verifies the engine's bearer fallback tokens. Tokens are
// domain-bound and time-boxed; they exist so cookie-denying clients
// (mobile apps, in-app browsers, cross-site contexts) can still present a
// verifiable credential through the Authorization header.
package jwt
