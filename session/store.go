package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport-level Redis failure so callers
// can fail closed without inspecting driver errors.
var ErrRedisUnavailable = errors.New("redis unavailable")

const minSlidingTTL = time.Second

// deleteSessionScript removes the record, its CSRF sibling, and the index
// entry in one atomic step. Revocation must be a real delete: a lingering
// key after revoke would still validate.
const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
redis.call("DEL", KEYS[1], KEYS[3])
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session store. Each role domain gets its own key
// namespace, so a session id presented against the wrong domain can never
// resolve to a record.
//
// All methods are safe for concurrent use; the Redis server is the single
// source of truth across request workers.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	sliding       bool
	jitterEnabled bool
	jitterRange   time.Duration
}

// NewStore creates a session Store backed by the given Redis client.
// prefix sets the key namespace root; sliding, jitterEnabled, and
// jitterRange control expiration behavior.
func NewStore(
	redis redis.UniversalClient,
	prefix string,
	sliding bool,
	jitterEnabled bool,
	jitterRange time.Duration,
) *Store {
	return &Store{
		redis:         redis,
		prefix:        prefix,
		sliding:       sliding,
		jitterEnabled: jitterEnabled,
		jitterRange:   jitterRange,
	}
}

func (s *Store) key(domain, sessionID string) string {
	return s.prefix + ":" + domain + ":" + sessionID
}

func (s *Store) indexKey(domain, identityID string) string {
	return s.prefix + "i:" + domain + ":" + identityID
}

func (s *Store) csrfKey(domain, sessionID string) string {
	return s.prefix + "c:" + domain + ":" + sessionID
}

// Save persists a Record and registers it in the identity's session index.
// The write is transactional: either the record and index entry both land
// or neither does.
func (s *Store) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	sessionKey := s.key(rec.Domain, rec.SessionID)
	indexKey := s.indexKey(rec.Domain, rec.IdentityID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, indexKey, rec.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by domain and session ID, applying the absolute
// lifetime cap and, when sliding expiration is on, renewing the TTL of the
// record and its CSRF sibling. Returns redis.Nil when the session is gone.
func (s *Store) Get(ctx context.Context, domain, sessionID string, absoluteLifetime time.Duration) (*Record, error) {
	key := s.key(domain, sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, err
	}
	rec.SessionID = sessionID

	now := time.Now()
	if s.remainingAbsoluteTTL(rec, absoluteLifetime, now) <= 0 {
		if err := s.deleteSessionAndIndex(ctx, rec.Domain, rec.IdentityID, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	return rec, nil
}

// Touch rewrites the record after a successful validation: refreshed
// LastActivityAt and, when sliding expiration is on and ttl is positive,
// a renewed TTL for the record and its CSRF sibling (with optional jitter).
// SET XX guarantees a concurrently revoked session is never resurrected;
// structural fields are re-encoded from the copy the caller just
// validated, so a racing Touch is last-writer-wins on the activity
// timestamp only.
func (s *Store) Touch(ctx context.Context, rec *Record, ttl time.Duration) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	key := s.key(rec.Domain, rec.SessionID)

	if !s.sliding || ttl <= 0 {
		if err := s.redis.SetXX(ctx, key, data, redis.KeepTTL).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	nextTTL, err := s.nextSlidingTTL(ttl)
	if err != nil {
		return err
	}

	// SetXX reports false when the record vanished mid-flight (revoked or
	// expired); that is not an error, the next Get simply misses.
	pipe := s.redis.Pipeline()
	pipe.SetXX(ctx, key, data, nextTTL)
	pipe.Expire(ctx, s.csrfKey(rec.Domain, rec.SessionID), nextTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetReadOnly fetches a session without mutating TTL, index, or any Redis
// state. Returns redis.Nil for missing or expired records.
func (s *Store) GetReadOnly(ctx context.Context, domain, sessionID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(domain, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, err
	}
	rec.SessionID = sessionID
	if time.Now().Unix() > rec.ExpiresAt {
		return nil, redis.Nil
	}

	return rec, nil
}

// Delete removes a session, its CSRF token, and its index entry. Deleting
// an already-gone session is not an error.
func (s *Store) Delete(ctx context.Context, domain, sessionID string) error {
	key := s.key(domain, sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Record already expired; the CSRF sibling may linger until
			// its own TTL. Clear it so revoke is total.
			if delErr := s.redis.Del(ctx, s.csrfKey(domain, sessionID)).Err(); delErr != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
			}
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		// Corrupt blob: delete the raw keys anyway, revocation must win.
		if delErr := s.redis.Del(ctx, key, s.csrfKey(domain, sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return nil
	}

	return s.deleteSessionAndIndex(ctx, domain, rec.IdentityID, sessionID)
}

// DeleteAllForIdentity removes every session tracked for an identity in a
// domain.
//
// ATOMICITY NOTE: the read of the index set and the deletes are separate
// steps. A session created between them is not captured; it will be caught
// by the next call or expire on its own. A partial failure leaves already
// deleted sessions deleted and returns the error, never a silent drop.
func (s *Store) DeleteAllForIdentity(ctx context.Context, domain, identityID string) error {
	indexKey := s.indexKey(domain, identityID)

	sessionIDs, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs)*2+1)
	for _, sessionID := range sessionIDs {
		keys = append(keys, s.key(domain, sessionID), s.csrfKey(domain, sessionID))
	}
	keys = append(keys, indexKey)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// IdentitySessionIDs returns the tracked session IDs for an identity.
// Entries are index state, not proof of liveness; callers pair this with
// GetManyReadOnly and prune what no longer resolves.
func (s *Store) IdentitySessionIDs(ctx context.Context, domain, identityID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.indexKey(domain, identityID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// GetManyReadOnly fetches multiple sessions without touching TTLs. Missing
// or expired entries are skipped and reported as stale so the caller can
// prune the index.
func (s *Store) GetManyReadOnly(ctx context.Context, domain string, sessionIDs []string) ([]*Record, []string, error) {
	if len(sessionIDs) == 0 {
		return []*Record{}, nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(domain, sid))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	records := make([]*Record, 0, len(sessionIDs))
	var stale []string
	nowUnix := time.Now().Unix()
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, sessionIDs[i])
				continue
			}
			return nil, nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		rec, decErr := Decode(data)
		if decErr != nil {
			stale = append(stale, sessionIDs[i])
			continue
		}
		rec.SessionID = sessionIDs[i]
		if nowUnix > rec.ExpiresAt {
			stale = append(stale, sessionIDs[i])
			continue
		}

		records = append(records, rec)
	}

	return records, stale, nil
}

// RemoveFromIndex lazily prunes stale session IDs from an identity's index.
func (s *Store) RemoveFromIndex(ctx context.Context, domain, identityID string, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}

	members := make([]interface{}, len(sessionIDs))
	for i, id := range sessionIDs {
		members[i] = id
	}

	if err := s.redis.SRem(ctx, s.indexKey(domain, identityID), members...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SaveCSRF stores the digest of a session's double-submit token beside the
// record, under the same domain namespace and TTL.
func (s *Store) SaveCSRF(ctx context.Context, domain, sessionID string, digest [32]byte, ttl time.Duration) error {
	err := s.redis.Set(ctx, s.csrfKey(domain, sessionID), digest[:], ttl).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetCSRF returns the stored token digest for a session. Returns redis.Nil
// when no token was issued or it expired.
func (s *Store) GetCSRF(ctx context.Context, domain, sessionID string) ([32]byte, error) {
	var digest [32]byte

	data, err := s.redis.Get(ctx, s.csrfKey(domain, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return digest, err
		}
		return digest, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(data) != len(digest) {
		return digest, errors.New("invalid csrf digest size")
	}

	copy(digest[:], data)
	return digest, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) remainingAbsoluteTTL(rec *Record, absoluteLifetime time.Duration, now time.Time) time.Duration {
	storedExpiry := time.Unix(rec.ExpiresAt, 0)
	if absoluteLifetime <= 0 {
		return storedExpiry.Sub(now)
	}

	configCap := time.Unix(rec.CreatedAt, 0).Add(absoluteLifetime)
	if configCap.Before(storedExpiry) {
		return configCap.Sub(now)
	}

	return storedExpiry.Sub(now)
}

func (s *Store) nextSlidingTTL(remainingAbsolute time.Duration) (time.Duration, error) {
	nextTTL := remainingAbsolute

	if s.jitterEnabled && s.jitterRange > 0 {
		jitter, err := randomJitter(s.jitterRange)
		if err != nil {
			return 0, err
		}
		nextTTL += jitter
	}

	if nextTTL > remainingAbsolute {
		nextTTL = remainingAbsolute
	}

	minTTL := minSlidingTTL
	if remainingAbsolute < minTTL {
		minTTL = remainingAbsolute
	}
	if nextTTL < minTTL {
		nextTTL = minTTL
	}

	return nextTTL, nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, domain, identityID, sessionID string) error {
	keys := []string{
		s.key(domain, sessionID),
		s.indexKey(domain, identityID),
		s.csrfKey(domain, sessionID),
	}

	if _, err := deleteSessionLua.Run(ctx, s.redis, keys, sessionID).Result(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > (math.MaxInt64-1)/2 {
		return 0, errors.New("jitter range too large")
	}
	span := max*2 + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64() - max), nil
}
