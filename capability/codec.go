package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken is the single error surfaced for every decode failure.
// Malformed input, a participant-count mismatch, a bad signature, and an
// expired timestamp are deliberately indistinguishable to callers; leaking
// which check failed would hand an oracle to whoever is forging tokens.
var ErrInvalidToken = errors.New("invalid capability token")

const delimiter = ":"

// fixed fields before the participant list: resource, owner, count
const headerFields = 3

// trailing fields after the participant list: timestamp, signature
const trailerFields = 2

// tolerated clock skew for tokens minted by a peer with a fast clock
const maxFutureSkew = 2 * time.Minute

// Token is a decoded capability grant: time-boxed access to one resource
// for a known set of participant identities. Tokens are stateless; nothing
// is persisted server-side.
type Token struct {
	ResourceID   string
	OwnerID      string
	Participants []string
	IssuedAt     time.Time
}

// Codec signs and verifies capability tokens with HMAC-SHA256.
//
// The wire layout is count-prefixed:
//
//	resource:owner:N:participant1:...:participantN:timestamp:signature
//
// The explicit count removes any ambiguity between the variable-length
// participant list and the trailing timestamp, even when a participant id
// happens to look like a unix timestamp.
type Codec struct {
	secret []byte
	ttl    time.Duration

	now func() time.Time
}

// NewCodec creates a Codec. secret must be non-empty and ttl positive.
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("capability secret required")
	}
	if ttl <= 0 {
		return nil, errors.New("capability ttl must be positive")
	}
	return &Codec{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Encode serializes and signs a grant for resourceID owned by ownerID,
// readable by participantIDs. Fields containing the delimiter are rejected
// up front; a field that survived encoding always parses back unambiguously.
func (c *Codec) Encode(resourceID, ownerID string, participantIDs []string) (string, error) {
	if resourceID == "" || ownerID == "" {
		return "", errors.New("resource and owner ids required")
	}

	fields := make([]string, 0, headerFields+len(participantIDs)+1)
	fields = append(fields, resourceID, ownerID, strconv.Itoa(len(participantIDs)))
	fields = append(fields, participantIDs...)
	fields = append(fields, strconv.FormatInt(c.now().Unix(), 10))

	for _, f := range fields {
		if f == "" || strings.Contains(f, delimiter) {
			return "", errors.New("capability field empty or contains delimiter")
		}
	}

	payload := strings.Join(fields, delimiter)
	return payload + delimiter + c.sign(payload), nil
}

// Decode parses and verifies a token. The participant count field must
// agree with the actual number of fields, the recomputed signature must
// match exactly, and the timestamp must be within the codec TTL.
func (c *Codec) Decode(token string) (*Token, error) {
	fields := strings.Split(token, delimiter)
	if len(fields) < headerFields+trailerFields {
		return nil, ErrInvalidToken
	}

	count, err := strconv.Atoi(fields[2])
	if err != nil || count < 0 {
		return nil, ErrInvalidToken
	}
	if len(fields) != headerFields+count+trailerFields {
		return nil, ErrInvalidToken
	}

	payload := strings.Join(fields[:len(fields)-1], delimiter)
	signature := fields[len(fields)-1]
	if !hmac.Equal([]byte(signature), []byte(c.sign(payload))) {
		return nil, ErrInvalidToken
	}

	issuedUnix, err := strconv.ParseInt(fields[len(fields)-2], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	issuedAt := time.Unix(issuedUnix, 0)
	if c.now().Sub(issuedAt) >= c.ttl {
		return nil, ErrInvalidToken
	}
	if issuedAt.After(c.now().Add(maxFutureSkew)) {
		return nil, ErrInvalidToken
	}

	participants := make([]string, count)
	copy(participants, fields[headerFields:headerFields+count])

	return &Token{
		ResourceID:   fields[0],
		OwnerID:      fields[1],
		Participants: participants,
		IssuedAt:     issuedAt,
	}, nil
}

// Authorizes reports whether identityID may use the token: either the
// owner or any listed participant.
func (t *Token) Authorizes(identityID string) bool {
	if identityID == "" {
		return false
	}
	if identityID == t.OwnerID {
		return true
	}
	for _, p := range t.Participants {
		if p == identityID {
			return true
		}
	}
	return false
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
