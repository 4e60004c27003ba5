package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID is the raw 128-bit session identifier. String form is
// base64url without padding, which is what lands in the cookie.
type SessionID [16]byte

const csrfSecretSize = 32

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewCSRFSecret returns a fresh double-submit token in its cookie form.
func NewCSRFSecret() (string, error) {
	var secret [csrfSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}
