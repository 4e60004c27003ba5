package authgate

import "errors"

// Internal distinctions between these errors exist for logging and metrics
// only. HTTP adapters collapse all of them into a generic unauthorized
// response; none of the detail below is ever echoed to a client.
var (
	// ErrUnauthenticated means no usable credential was found on either
	// channel.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionExpired means the session existed but is now gone or
	// inactive. Surfaced to HTTP identically to ErrUnauthenticated.
	ErrSessionExpired = errors.New("session expired")
	// ErrFingerprintMismatch means the request's device fingerprint did not
	// match the one bound at login. The session is revoked as a side effect.
	ErrFingerprintMismatch = errors.New("session fingerprint mismatch")
	// ErrCSRFRejected means identity was established but the state-changing
	// request failed double-submit verification.
	ErrCSRFRejected = errors.New("csrf token rejected")
	// ErrBearerInvalid means the Authorization header token failed
	// verification or was bound to a different role domain.
	ErrBearerInvalid = errors.New("invalid bearer token")
	// ErrStoreUnavailable means the session store could not be reached.
	// Validation fails closed; creation propagates this as a hard error.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrDraining means the engine is shutting down and refuses new
	// session-creating operations. In-flight validations still complete.
	ErrDraining = errors.New("engine draining")
	// ErrSessionCreationFailed wraps create-path failures that must not be
	// retried: a retry could mint duplicate sessions for one login attempt.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrBearerDisabled means the bearer fallback channel is not configured.
	ErrBearerDisabled = errors.New("bearer channel disabled")
)
