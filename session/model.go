package session

// Record is the server-side session state persisted to Redis. A record's
// existence in the store is the liveness signal: revocation deletes the key
// outright instead of flagging it, so there is no is_active field to drift.
//
// Structural fields (IdentityID, Domain, FingerprintHash, CreatedAt) are
// fixed at creation. Only LastActivityAt and ClientIP move on validation.
type Record struct {
	SessionID  string
	IdentityID string
	Domain     string

	ClientIP        string
	FingerprintHash [32]byte

	CreatedAt      int64
	LastActivityAt int64
	ExpiresAt      int64

	SchemaVersion uint8
}
