package authgate

import "context"

type clientIPContextKey struct{}
type fingerprintContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's originating address to ctx. The
// engine records it on the session (best effort, usually derived from
// proxy headers by the caller) and includes it in audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithFingerprint attaches the request's device fingerprint to ctx. The
// fingerprint binding check during validation reads it from here.
func WithFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, fingerprintContextKey{}, fingerprint)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx for audit
// metadata.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func fingerprintFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	fp, _ := ctx.Value(fingerprintContextKey{}).(string)
	return fp
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
