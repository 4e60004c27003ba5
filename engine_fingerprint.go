package authgate

import (
	"context"
	"crypto/subtle"

	"github.com/halyard-io/authgate/internal"
	"github.com/halyard-io/authgate/session"
)

// checkFingerprint applies the device binding policy to a freshly loaded
// record. Under enforcement a mismatch means probable session hijacking:
// the session is revoked on the spot and the caller sees
// ErrFingerprintMismatch. Without enforcement the stored fingerprint
// either follows the client (UpdateOnMismatch) or is left alone.
func (e *Engine) checkFingerprint(ctx context.Context, rec *session.Record) error {
	current := fingerprintFromContext(ctx)

	storedPresent := !isZeroHash(rec.FingerprintHash)
	currentHash, currentPresent := fingerprintHash(current)

	mismatch := bindingMismatch(storedPresent, rec.FingerprintHash, currentPresent, currentHash, e.config.Fingerprint.Enforce)
	if !mismatch {
		return nil
	}

	if e.config.Fingerprint.Enforce {
		e.metricInc(MetricFingerprintMismatch)
		domain, _ := ParseRoleDomain(rec.Domain)
		e.emitAudit(ctx, auditEventFingerprintRejected, false, rec.IdentityID, domain, rec.SessionID, ErrFingerprintMismatch, nil)

		// Mismatch is treated as revocation: leaving the session alive
		// would let the hijacker retry with a spoofed fingerprint.
		_ = e.RevokeSession(ctx, domain, rec.SessionID)
		return ErrFingerprintMismatch
	}

	if e.config.Fingerprint.UpdateOnMismatch && currentPresent {
		rec.FingerprintHash = currentHash
	}
	return nil
}

func fingerprintHash(v string) ([32]byte, bool) {
	if v == "" {
		return [32]byte{}, false
	}
	return internal.HashFingerprint(v), true
}

func isZeroHash(h [32]byte) bool {
	var zero [32]byte
	return subtle.ConstantTimeCompare(h[:], zero[:]) == 1
}

func bindingMismatch(storedPresent bool, storedHash [32]byte, currentPresent bool, currentHash [32]byte, enforce bool) bool {
	if enforce {
		if !storedPresent || !currentPresent {
			return true
		}
		return subtle.ConstantTimeCompare(storedHash[:], currentHash[:]) != 1
	}
	if !storedPresent && !currentPresent {
		return false
	}
	if !storedPresent || !currentPresent {
		return true
	}
	return subtle.ConstantTimeCompare(storedHash[:], currentHash[:]) != 1
}
