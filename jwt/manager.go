package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the bearer token signature scheme.
type SigningMethod string

const (
	// MethodEd25519 signs with an ed25519 key pair (default).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config holds bearer token signing and verification parameters. Instances
// are configured once and treated as immutable afterwards.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Manager mints and verifies the bearer fallback credential: a signed,
// time-boxed token carrying the identity and its role domain. Clients that
// cannot present cookies submit it through the Authorization header.
type Manager struct {
	config Config
}

// BearerClaims are the claims carried by a bearer fallback token. The Dom
// claim binds the token to one role domain; verification rejects a token
// presented against any other domain.
type BearerClaims struct {
	IdentityID string `json:"uid"`
	Dom        string `json:"dom"`
	SID        string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}
	return &Manager{config: cfg}, nil
}

func checkConfig(cfg Config) error {
	switch {
	case cfg.AccessTTL <= 0:
		return errors.New("access TTL must be positive")
	case cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute:
		return errors.New("leeway out of range")
	case cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour:
		return errors.New("future iat bound out of range")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return errors.New("hs256 requires a shared secret")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := edPrivateKey(cfg.PrivateKey); err != nil {
				return err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := edPublicKey(cfg.PublicKey); err != nil {
				return err
			}
		}
		if len(cfg.PublicKey) == 0 && len(cfg.VerifyKeys) == 0 {
			return errors.New("ed25519 requires a public key or verify key set")
		}
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return errors.New("verify key set contains an empty kid")
			}
			if _, err := edPublicKey(raw); err != nil {
				return fmt.Errorf("verify key %q: %w", kid, err)
			}
		}
	default:
		return errors.New("unsupported signing method")
	}

	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return errors.New("KeyID missing from VerifyKeys")
		}
	}
	return nil
}

// CreateBearer mints a signed bearer token for identityID in domain.
// sessionID is optional and links the token to a server-side session for
// audit purposes only; verification never consults the session store.
func (j *Manager) CreateBearer(identityID, domain, sessionID string) (string, error) {
	now := time.Now()
	claims := BearerClaims{
		IdentityID: identityID,
		Dom:        domain,
		SID:        sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.method(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	key, err := j.signingKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(key)
}

// ParseBearer verifies a bearer token and returns its claims. Signature,
// expiry, issuer, audience, and issued-at bounds are all enforced here;
// domain matching is the caller's final step.
func (j *Manager) ParseBearer(tokenStr string) (*BearerClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.method().Alg()}),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &BearerClaims{}, j.keyFor)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*BearerClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IdentityID == "" || claims.Dom == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.After(time.Now().Add(j.config.MaxFutureIAT)) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}

// keyFor resolves the verification key for a parsed token header. With a
// VerifyKeys set configured the kid header is mandatory; otherwise a
// configured KeyID pins the expected kid.
func (j *Manager) keyFor(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != j.method().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)

	if len(j.config.VerifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		raw, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, fmt.Errorf("no verify key for kid %q", kid)
		}
		if j.config.SigningMethod == MethodHS256 {
			return raw, nil
		}
		return edPublicKey(raw)
	}

	if j.config.KeyID != "" && kid != j.config.KeyID {
		return nil, errors.New("kid does not match configured key")
	}

	return j.verificationKey()
}

func (j *Manager) method() jwt.SigningMethod {
	if j.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (j *Manager) signingKey() (interface{}, error) {
	if j.config.SigningMethod == MethodHS256 {
		return j.config.PrivateKey, nil
	}
	return edPrivateKey(j.config.PrivateKey)
}

func (j *Manager) verificationKey() (interface{}, error) {
	if j.config.SigningMethod == MethodHS256 {
		return j.config.PrivateKey, nil
	}
	return edPublicKey(j.config.PublicKey)
}

// edPrivateKey accepts a raw 64-byte ed25519 private key or a PEM block.
func edPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(raw), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(raw)
	if err == nil {
		if key, ok := parsed.(ed25519.PrivateKey); ok {
			return key, nil
		}
	}
	return nil, errors.New("not an ed25519 private key")
}

// edPublicKey accepts a raw 32-byte ed25519 public key or a PEM block.
func edPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(raw)
	if err == nil {
		if key, ok := parsed.(ed25519.PublicKey); ok {
			return key, nil
		}
	}
	return nil, errors.New("not an ed25519 public key")
}
