package authgate

import (
	authjwt "github.com/halyard-io/authgate/jwt"
)

// IssueBearer mints a signed, time-boxed bearer token for identityID in
// domain. sessionID is optional audit linkage; bearer verification is
// stateless and never consults the session store.
func (e *Engine) IssueBearer(domain RoleDomain, identityID, sessionID string) (string, error) {
	if e.bearer == nil {
		return "", ErrBearerDisabled
	}
	if identityID == "" || !domain.Valid() {
		return "", ErrBearerInvalid
	}

	token, err := e.bearer.CreateBearer(identityID, domain.String(), sessionID)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricBearerIssued)
	return token, nil
}

// verifyBearer validates a bearer token against a role domain. A valid
// signature with the wrong domain claim is rejected the same as a forgery;
// the domain check is the namespace isolation invariant for this channel.
func (e *Engine) verifyBearer(domain RoleDomain, token string) (*authjwt.BearerClaims, error) {
	if e.bearer == nil {
		return nil, ErrBearerDisabled
	}
	if token == "" || !domain.Valid() {
		return nil, ErrBearerInvalid
	}

	claims, err := e.bearer.ParseBearer(token)
	if err != nil {
		e.metricInc(MetricBearerRejected)
		return nil, ErrBearerInvalid
	}
	if claims.Dom != domain.String() {
		e.metricInc(MetricBearerRejected)
		return nil, ErrBearerInvalid
	}

	return claims, nil
}
