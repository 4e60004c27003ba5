package internal

import "crypto/sha256"

// HashFingerprint reduces an opaque client fingerprint to the fixed-size
// digest stored inside the session record. The raw value never hits Redis.
func HashFingerprint(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}
