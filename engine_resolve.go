package authgate

import "context"

// Resolve is the single credential resolution core shared by every call
// site, HTTP middleware and direct callers alike. It tries the cookie
// session channel first and falls back to the bearer channel; a broken
// cookie never blocks a valid bearer token. The returned identity records
// which channel authenticated so callers can decide whether CSRF
// verification applies.
func (e *Engine) Resolve(ctx context.Context, domain RoleDomain, creds Credentials) (VerifiedIdentity, error) {
	if !domain.Valid() {
		return VerifiedIdentity{}, ErrUnauthenticated
	}

	if creds.SessionID != "" {
		rec, err := e.ValidateSession(ctx, domain, creds.SessionID)
		if err == nil {
			return VerifiedIdentity{
				IdentityID: rec.IdentityID,
				Domain:     domain,
				Channel:    ChannelCookie,
				SessionID:  rec.SessionID,
			}, nil
		}
		// Cookie channel failed; fall through. Expired, revoked, hijacked,
		// and store-down all degrade to the bearer attempt, which is
		// stateless and unaffected by the store.
	}

	if creds.BearerToken != "" && e.bearer != nil {
		claims, err := e.verifyBearer(domain, creds.BearerToken)
		if err == nil {
			e.metricInc(MetricBearerFallback)
			return VerifiedIdentity{
				IdentityID: claims.IdentityID,
				Domain:     domain,
				Channel:    ChannelBearer,
			}, nil
		}
	}

	return VerifiedIdentity{}, ErrUnauthenticated
}
