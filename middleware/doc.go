// Package middleware adapts the engine to net/http: domain routing,
// credential resolution, and CSRF enforcement as composable handler
// wrappers. The middleware layer owns HTTP extraction and status mapping
// only; all verification decisions live in the root package.
package middleware
