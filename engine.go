package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/halyard-io/authgate/capability"
	"github.com/halyard-io/authgate/internal"
	internalaudit "github.com/halyard-io/authgate/internal/audit"
	internalmetrics "github.com/halyard-io/authgate/internal/metrics"
	authjwt "github.com/halyard-io/authgate/jwt"
	"github.com/halyard-io/authgate/session"
	"github.com/redis/go-redis/v9"
)

const (
	auditEventSessionCreated      = "session_created"
	auditEventSessionRevoked      = "session_revoked"
	auditEventRevokeAll           = "session_revoke_all"
	auditEventFingerprintRejected = "session_fingerprint_rejected"
	auditEventCSRFRejected        = "csrf_rejected"
	auditEventStoreUnavailable    = "session_store_unavailable"
	auditEventDrainRejected       = "session_create_drain_rejected"
)

// Engine is the session and credential verification engine. All methods
// are safe for concurrent use after [Builder.Build].
type Engine struct {
	config       Config
	sessionStore *session.Store
	bearer       *authjwt.Manager
	capability   *capability.Codec
	drain        *DrainState
	metrics      *internalmetrics.Metrics
	audit        *internalaudit.Dispatcher
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// CreateSession mints a new session for identityID in domain: a 128-bit
// random session id, the record written with the configured TTL, and the
// id registered in the identity's session index. Creation is refused while
// draining and never retried on store failure; a silent retry could mint
// two sessions for one login attempt.
func (e *Engine) CreateSession(
	ctx context.Context,
	domain RoleDomain,
	identityID string,
	fingerprint string,
	clientIP string,
) (*session.Record, error) {
	if !domain.Valid() || identityID == "" {
		return nil, fmt.Errorf("%w: invalid identity or domain", ErrSessionCreationFailed)
	}
	if e.drain.Draining() {
		e.metricInc(MetricDrainRejected)
		e.emitAudit(ctx, auditEventDrainRejected, false, identityID, domain, "", ErrDraining, nil)
		return nil, ErrDraining
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	now := time.Now()
	rec := &session.Record{
		SessionID:      sid.String(),
		IdentityID:     identityID,
		Domain:         domain.String(),
		ClientIP:       clientIP,
		CreatedAt:      now.Unix(),
		LastActivityAt: now.Unix(),
		ExpiresAt:      now.Add(e.config.Session.TTL).Unix(),
		SchemaVersion:  session.CurrentSchemaVersion,
	}
	if fingerprint != "" {
		rec.FingerprintHash = internal.HashFingerprint(fingerprint)
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.sessionStore.Save(sctx, rec, e.config.Session.TTL); err != nil {
		e.noteStoreFailure(ctx, err, identityID, domain, rec.SessionID)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, identityID, domain, rec.SessionID, nil, nil)
	return rec, nil
}

// StartSession is the login-handler convenience: create the session, issue
// its CSRF token, and mint a bearer fallback token when that channel is
// enabled. Pair the returned handle with [Engine.WriteSessionCookies].
func (e *Engine) StartSession(
	ctx context.Context,
	domain RoleDomain,
	identityID string,
	fingerprint string,
	clientIP string,
) (*SessionHandle, error) {
	rec, err := e.CreateSession(ctx, domain, identityID, fingerprint, clientIP)
	if err != nil {
		return nil, err
	}

	csrfToken, err := e.IssueCSRF(ctx, domain, rec.SessionID)
	if err != nil {
		// Half-created logins are revoked rather than handed out without
		// CSRF protection.
		_ = e.RevokeSession(ctx, domain, rec.SessionID)
		return nil, err
	}

	handle := &SessionHandle{
		SessionID:  rec.SessionID,
		IdentityID: identityID,
		Domain:     domain,
		CSRFToken:  csrfToken,
		ExpiresAt:  time.Unix(rec.ExpiresAt, 0),
	}

	if e.bearer != nil {
		bearerToken, err := e.IssueBearer(domain, identityID, rec.SessionID)
		if err != nil {
			_ = e.RevokeSession(ctx, domain, rec.SessionID)
			return nil, err
		}
		handle.BearerToken = bearerToken
	}

	return handle, nil
}

// ValidateSession looks up and verifies a session: existence, role domain,
// fingerprint binding, then refreshes activity and the sliding window.
// Store unavailability fails closed.
func (e *Engine) ValidateSession(ctx context.Context, domain RoleDomain, sessionID string) (*session.Record, error) {
	start := time.Now()
	rec, err := e.validateSession(ctx, domain, sessionID)
	e.observeValidateLatency(start)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		return nil, err
	}

	e.metricInc(MetricSessionValidated)
	return rec, nil
}

func (e *Engine) validateSession(ctx context.Context, domain RoleDomain, sessionID string) (*session.Record, error) {
	if sessionID == "" || !domain.Valid() {
		return nil, ErrUnauthenticated
	}
	// Structural check before any store round trip; a cookie that cannot be
	// a session id never touches Redis.
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, ErrUnauthenticated
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	rec, err := e.sessionStore.Get(sctx, domain.String(), sessionID, e.config.Session.AbsoluteLifetime)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionExpired
		}
		if errors.Is(err, session.ErrRedisUnavailable) {
			e.noteStoreFailure(ctx, err, "", domain, sessionID)
			return nil, ErrStoreUnavailable
		}
		// Corrupt or foreign blob: fail closed, same as no credential.
		return nil, ErrUnauthenticated
	}

	if rec.Domain != domain.String() {
		return nil, ErrUnauthenticated
	}

	if err := e.checkFingerprint(ctx, rec); err != nil {
		return nil, err
	}

	now := time.Now()
	rec.LastActivityAt = now.Unix()
	if ip := clientIPFromContext(ctx); ip != "" {
		rec.ClientIP = ip
	}

	ttl := e.nextExpiry(rec, now)
	if err := e.sessionStore.Touch(sctx, rec, ttl); err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			e.noteStoreFailure(ctx, err, rec.IdentityID, domain, sessionID)
			return nil, ErrStoreUnavailable
		}
		return nil, ErrUnauthenticated
	}

	return rec, nil
}

// nextExpiry advances the sliding window, honoring the absolute lifetime
// cap, and mutates rec.ExpiresAt to match. Returns the TTL to apply, or 0
// when sliding is disabled.
func (e *Engine) nextExpiry(rec *session.Record, now time.Time) time.Duration {
	if !e.config.Session.SlidingExpiration {
		return 0
	}

	expiry := now.Add(e.config.Session.TTL)
	if abs := e.config.Session.AbsoluteLifetime; abs > 0 {
		hardCap := time.Unix(rec.CreatedAt, 0).Add(abs)
		if expiry.After(hardCap) {
			expiry = hardCap
		}
	}

	rec.ExpiresAt = expiry.Unix()
	return expiry.Sub(now)
}

// RevokeSession deletes a session outright. Idempotent: revoking an
// already-gone session succeeds.
func (e *Engine) RevokeSession(ctx context.Context, domain RoleDomain, sessionID string) error {
	if sessionID == "" || !domain.Valid() {
		return nil
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.sessionStore.Delete(sctx, domain.String(), sessionID); err != nil {
		e.noteStoreFailure(ctx, err, "", domain, sessionID)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, "", domain, sessionID, nil, nil)
	return nil
}

// RevokeAll deletes every session for identityID in domain. Sessions the
// identity holds in other domains are untouched. A partial failure is
// surfaced, never silently dropped.
func (e *Engine) RevokeAll(ctx context.Context, domain RoleDomain, identityID string) error {
	if identityID == "" || !domain.Valid() {
		return nil
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.sessionStore.DeleteAllForIdentity(sctx, domain.String(), identityID); err != nil {
		e.noteStoreFailure(ctx, err, identityID, domain, "")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, identityID, domain, "", nil, nil)
	return nil
}

// Sessions lists the identity's live sessions in a domain. Stale index
// entries discovered along the way are pruned best-effort.
func (e *Engine) Sessions(ctx context.Context, domain RoleDomain, identityID string) ([]SessionInfo, error) {
	if identityID == "" || !domain.Valid() {
		return []SessionInfo{}, nil
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	ids, err := e.sessionStore.IdentitySessionIDs(sctx, domain.String(), identityID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	records, stale, err := e.sessionStore.GetManyReadOnly(sctx, domain.String(), ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if len(stale) > 0 {
		// Index hygiene only; listing still succeeds if the prune fails.
		_ = e.sessionStore.RemoveFromIndex(sctx, domain.String(), identityID, stale)
	}

	infos := make([]SessionInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, SessionInfo{
			SessionID:      rec.SessionID,
			ClientIP:       rec.ClientIP,
			CreatedAt:      time.Unix(rec.CreatedAt, 0),
			LastActivityAt: time.Unix(rec.LastActivityAt, 0),
			ExpiresAt:      time.Unix(rec.ExpiresAt, 0),
		})
	}

	return infos, nil
}

// Capability returns the configured capability token codec, or nil when no
// capability secret was configured.
func (e *Engine) Capability() *capability.Codec {
	return e.capability
}

// Ping reports session store reachability and round-trip latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.sessionStore.Ping(sctx)
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.SnapshotNow()
}

// AuditDropped reports audit events dropped under dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.config.Session.StoreTimeout)
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) observeValidateLatency(start time.Time) {
	e.metrics.ObserveMicros(MetricValidateLatency, uint64(time.Since(start).Microseconds()))
}

func (e *Engine) noteStoreFailure(ctx context.Context, err error, identityID string, domain RoleDomain, sessionID string) {
	e.metricInc(MetricStoreUnavailable)
	e.emitAudit(ctx, auditEventStoreUnavailable, false, identityID, domain, sessionID, err, nil)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID string,
	domain RoleDomain,
	sessionID string,
	err error,
	metadata map[string]string,
) {
	if e.audit == nil {
		return
	}

	event := internalaudit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Identity:  identityID,
		Domain:    domain.String(),
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["user_agent"] = ua
	}

	e.audit.Emit(ctx, event)
}
