package authgate

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/halyard-io/authgate/internal"
	"github.com/halyard-io/authgate/session"
	"github.com/redis/go-redis/v9"
)

// IssueCSRF mints a fresh double-submit token for a live session and
// stores its digest beside the record. The plaintext goes into the
// readable (non-HttpOnly) CSRF cookie; only the SHA-256 lands in Redis.
func (e *Engine) IssueCSRF(ctx context.Context, domain RoleDomain, sessionID string) (string, error) {
	if sessionID == "" || !domain.Valid() {
		return "", ErrUnauthenticated
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if _, err := e.sessionStore.GetReadOnly(sctx, domain.String(), sessionID); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionExpired
		}
		if errors.Is(err, session.ErrRedisUnavailable) {
			e.noteStoreFailure(ctx, err, "", domain, sessionID)
			return "", ErrStoreUnavailable
		}
		return "", ErrUnauthenticated
	}

	token, err := internal.NewCSRFSecret()
	if err != nil {
		return "", fmt.Errorf("csrf token generation: %w", err)
	}

	digest := sha256.Sum256([]byte(token))
	if err := e.sessionStore.SaveCSRF(sctx, domain.String(), sessionID, digest, e.config.csrfTTL()); err != nil {
		e.noteStoreFailure(ctx, err, "", domain, sessionID)
		return "", ErrStoreUnavailable
	}

	e.metricInc(MetricCSRFIssued)
	return token, nil
}

// RotateCSRF reissues the session's token, invalidating the previous one.
// Call it after privilege-sensitive actions such as a password change.
func (e *Engine) RotateCSRF(ctx context.Context, domain RoleDomain, sessionID string) (string, error) {
	return e.IssueCSRF(ctx, domain, sessionID)
}

// VerifyCSRF checks a submitted token against the one stored for the
// session. The compare is constant-time, and a structurally perfect token
// is still rejected once its session is gone: CSRF validity never outlives
// session validity.
func (e *Engine) VerifyCSRF(ctx context.Context, domain RoleDomain, sessionID, submitted string) error {
	if sessionID == "" || submitted == "" || !domain.Valid() {
		return e.rejectCSRF(ctx, domain, sessionID, nil)
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if _, err := e.sessionStore.GetReadOnly(sctx, domain.String(), sessionID); err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			e.noteStoreFailure(ctx, err, "", domain, sessionID)
			return ErrStoreUnavailable
		}
		return e.rejectCSRF(ctx, domain, sessionID, err)
	}

	stored, err := e.sessionStore.GetCSRF(sctx, domain.String(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			e.noteStoreFailure(ctx, err, "", domain, sessionID)
			return ErrStoreUnavailable
		}
		return e.rejectCSRF(ctx, domain, sessionID, err)
	}

	digest := sha256.Sum256([]byte(submitted))
	if subtle.ConstantTimeCompare(digest[:], stored[:]) != 1 {
		return e.rejectCSRF(ctx, domain, sessionID, nil)
	}

	return nil
}

func (e *Engine) rejectCSRF(ctx context.Context, domain RoleDomain, sessionID string, cause error) error {
	e.metricInc(MetricCSRFRejected)
	e.emitAudit(ctx, auditEventCSRFRejected, false, "", domain, sessionID, cause, nil)
	return ErrCSRFRejected
}
