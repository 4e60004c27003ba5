package middleware

import (
	"context"
	"net/http"
	"strings"

	authgate "github.com/halyard-io/authgate"
)

type identityContextKey struct{}

// IdentityFromContext returns the verified identity injected by [Resolve].
func IdentityFromContext(ctx context.Context) (*authgate.VerifiedIdentity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*authgate.VerifiedIdentity)
	return identity, ok
}

// Resolve is the credential resolution middleware. It routes the request
// to a role domain, extracts the session cookie and Authorization bearer
// token, and asks the engine to resolve them. Every failure mode — no
// credential, expired session, fingerprint mismatch, store outage —
// collapses into the same generic 401; the distinctions stay in audit
// events and metrics.
func Resolve(engine *authgate.Engine, router *DomainRouter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || router == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			domain := router.Domain(r)

			var creds authgate.Credentials
			if cookie, err := r.Cookie(engine.SessionCookieName()); err == nil {
				creds.SessionID = cookie.Value
			}
			if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
				creds.BearerToken = token
			}

			ctx := requestContext(r)
			identity, err := engine.Resolve(ctx, domain, creds)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, identityContextKey{}, &identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestContext attaches client IP, user agent, and fingerprint signals
// to the request context for the engine's binding checks and audit trail.
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()

	if ip := clientIP(r); ip != "" {
		ctx = authgate.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = authgate.WithUserAgent(ctx, ua)
		// User agent doubles as the default fingerprint signal when the
		// deployment has no richer client hint.
		ctx = authgate.WithFingerprint(ctx, ua)
	}
	if fp := r.Header.Get("X-Device-Fingerprint"); fp != "" {
		ctx = authgate.WithFingerprint(ctx, fp)
	}

	return ctx
}

func clientIP(r *http.Request) string {
	// Best effort: trust the leftmost forwarded address when present.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if host := r.RemoteAddr; host != "" {
		if idx := strings.LastIndexByte(host, ':'); idx > 0 {
			return host[:idx]
		}
		return host
	}
	return ""
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
