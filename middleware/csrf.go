package middleware

import (
	"net/http"

	authgate "github.com/halyard-io/authgate"
)

// RequireCSRF enforces double-submit verification on state-changing verbs.
// It must run after [Resolve]. Only cookie-authenticated requests are
// CSRF-exposed; bearer-only requests carry no ambient credential a
// cross-site attacker could ride, so they pass through.
func RequireCSRF(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !stateChanging(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if identity.Channel != authgate.ChannelCookie {
				next.ServeHTTP(w, r)
				return
			}

			submitted := r.Header.Get(engine.CSRFHeaderName())
			if err := engine.VerifyCSRF(r.Context(), identity.Domain, identity.SessionID, submitted); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
