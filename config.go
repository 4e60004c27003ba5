package authgate

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"time"
)

// Config is the engine's full configuration tree. Instances are validated
// once at Build time and treated as immutable afterwards.
type Config struct {
	Session     SessionConfig
	Cookie      CookieConfig
	CSRF        CSRFConfig
	Bearer      BearerConfig
	Capability  CapabilityConfig
	Fingerprint FingerprintConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

// SessionConfig controls server-side session storage and expiry.
type SessionConfig struct {
	RedisPrefix       string
	TTL               time.Duration
	SlidingExpiration bool
	// AbsoluteLifetime caps total session age regardless of activity.
	// Zero means no cap beyond the sliding TTL.
	AbsoluteLifetime time.Duration
	JitterEnabled    bool
	JitterRange      time.Duration
	// StoreTimeout bounds every Redis call. On timeout, validation fails
	// closed and creation surfaces a hard error.
	StoreTimeout time.Duration
}

// CookieConfig controls the cookies minted for the cookie channel. The
// session cookie is always HttpOnly; the CSRF cookie never is, since the
// client must read and echo it.
type CookieConfig struct {
	SessionName string
	CSRFName    string
	Secure      bool
	SameSite    http.SameSite
	Domain      string
	Path        string
}

// CSRFConfig controls double-submit token issuance.
type CSRFConfig struct {
	// TTL for the stored token. Zero means inherit the session TTL.
	TTL time.Duration
	// Header is the request header carrying the echoed token.
	Header string
}

// BearerConfig controls the signed bearer fallback channel. When Enabled
// is false the resolver is cookie-only.
type BearerConfig struct {
	Enabled       bool
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	KeyID         string
	VerifyKeys    map[string][]byte
}

// CapabilityConfig controls the signed capability token codec.
type CapabilityConfig struct {
	Secret []byte
	TTL    time.Duration
}

// FingerprintConfig controls device-fingerprint binding.
type FingerprintConfig struct {
	// Enforce rejects and revokes sessions on fingerprint mismatch. When
	// false, mismatch handling follows UpdateOnMismatch.
	Enforce bool
	// UpdateOnMismatch rewrites the stored fingerprint to the current one
	// when enforcement is off; false leaves the stored value untouched.
	UpdateOnMismatch bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metric collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a production-sane baseline: 24h sliding sessions,
// Lax+Secure cookies, bearer fallback enabled with generated ed25519 keys,
// fingerprint binding in detect-and-update mode.
func DefaultConfig() Config {
	cfg := baseConfig()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err == nil {
		cfg.Bearer.PrivateKey = priv
		cfg.Bearer.PublicKey = pub
	}

	return cfg
}

// HighSecurityConfig tightens the baseline: strict SameSite, enforced
// fingerprint binding, shorter TTLs, required IAT on bearer tokens.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.TTL = 4 * time.Hour
	cfg.Session.AbsoluteLifetime = 12 * time.Hour
	cfg.Cookie.SameSite = http.SameSiteStrictMode
	cfg.Bearer.AccessTTL = 10 * time.Minute
	cfg.Bearer.RequireIAT = true
	cfg.Fingerprint.Enforce = true
	cfg.Fingerprint.UpdateOnMismatch = false
	return cfg
}

func baseConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:       "ag",
			TTL:               24 * time.Hour,
			SlidingExpiration: true,
			StoreTimeout:      2 * time.Second,
		},
		Cookie: CookieConfig{
			SessionName: "sid",
			CSRFName:    "csrf_token",
			Secure:      true,
			SameSite:    http.SameSiteLaxMode,
			Path:        "/",
		},
		CSRF: CSRFConfig{
			Header: "X-CSRF-Token",
		},
		Bearer: BearerConfig{
			Enabled:       true,
			AccessTTL:     30 * time.Minute,
			SigningMethod: "ed25519",
		},
		Fingerprint: FingerprintConfig{
			Enforce:          false,
			UpdateOnMismatch: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for internally inconsistent or unsafe
// values. Build refuses configs that do not pass.
func (c *Config) Validate() error {
	if c.Session.RedisPrefix == "" {
		return errors.New("session redis prefix required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Session.AbsoluteLifetime < 0 {
		return errors.New("absolute session lifetime cannot be negative")
	}
	if c.Session.AbsoluteLifetime > 0 && c.Session.AbsoluteLifetime < c.Session.TTL {
		return errors.New("absolute session lifetime shorter than session ttl")
	}
	if c.Session.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	if c.Session.JitterEnabled && c.Session.JitterRange <= 0 {
		return errors.New("jitter enabled without jitter range")
	}
	if c.Cookie.SessionName == "" || c.Cookie.CSRFName == "" {
		return errors.New("cookie names required")
	}
	if c.Cookie.SessionName == c.Cookie.CSRFName {
		return errors.New("session and csrf cookies must differ")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("SameSite=None requires Secure cookies")
	}
	if c.CSRF.TTL < 0 {
		return errors.New("csrf ttl cannot be negative")
	}
	if c.CSRF.Header == "" {
		return errors.New("csrf header name required")
	}
	if c.Bearer.Enabled {
		if c.Bearer.AccessTTL <= 0 {
			return errors.New("bearer access ttl must be positive")
		}
		switch c.Bearer.SigningMethod {
		case "ed25519", "hs256", "":
		default:
			return errors.New("unsupported bearer signing method")
		}
	}
	if len(c.Capability.Secret) > 0 && c.Capability.TTL <= 0 {
		return errors.New("capability secret configured without ttl")
	}
	return nil
}

// csrfTTL resolves the effective CSRF token lifetime.
func (c *Config) csrfTTL() time.Duration {
	if c.CSRF.TTL > 0 {
		return c.CSRF.TTL
	}
	return c.Session.TTL
}
