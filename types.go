package authgate

import (
	"errors"
	"io"
	"time"

	internalaudit "github.com/halyard-io/authgate/internal/audit"
)

// RoleDomain segregates credential validity by actor category. A domain is
// fixed at session creation and never changes.
type RoleDomain uint8

const (
	// DomainUser is the end-user session namespace.
	DomainUser RoleDomain = iota
	// DomainAdmin is the administrator session namespace.
	DomainAdmin
	// DomainService is the customer-service agent session namespace.
	DomainService
)

func (d RoleDomain) String() string {
	switch d {
	case DomainUser:
		return "user"
	case DomainAdmin:
		return "admin"
	case DomainService:
		return "service"
	default:
		return "unknown"
	}
}

// Valid reports whether d is one of the three recognized domains.
func (d RoleDomain) Valid() bool {
	return d <= DomainService
}

// ParseRoleDomain maps a domain name back to its RoleDomain.
func ParseRoleDomain(s string) (RoleDomain, error) {
	switch s {
	case "user":
		return DomainUser, nil
	case "admin":
		return DomainAdmin, nil
	case "service":
		return DomainService, nil
	default:
		return 0, errors.New("unknown role domain")
	}
}

// AuthChannel records which credential channel authenticated a request.
// Cookie-authenticated state-changing requests must pass CSRF verification;
// bearer-only requests carry no ambient cookie and skip it.
type AuthChannel string

const (
	// ChannelCookie is the primary cookie-session channel.
	ChannelCookie AuthChannel = "cookie"
	// ChannelBearer is the Authorization-header fallback channel.
	ChannelBearer AuthChannel = "bearer"
)

// VerifiedIdentity is the normalized result of credential resolution,
// consumed by every protected route.
type VerifiedIdentity struct {
	IdentityID string
	Domain     RoleDomain
	Channel    AuthChannel

	// SessionID is set only for the cookie channel.
	SessionID string
}

// Credentials is the raw material Resolve works from. Either field may be
// empty; resolution order is cookie session first, bearer second.
type Credentials struct {
	SessionID   string
	BearerToken string
}

// SessionInfo is the read-only per-session view returned by
// [Engine.Sessions] for "list my sessions" surfaces.
type SessionInfo struct {
	SessionID      string
	ClientIP       string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
}

// SessionHandle bundles everything a login handler needs to mint the
// response: the created record plus the freshly issued CSRF token and,
// when the bearer channel is enabled, a bearer fallback token.
type SessionHandle struct {
	SessionID   string
	IdentityID  string
	Domain      RoleDomain
	CSRFToken   string
	BearerToken string
	ExpiresAt   time.Time
}

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit
// dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
