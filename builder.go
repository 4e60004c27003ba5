package authgate

import (
	"errors"

	"github.com/halyard-io/authgate/capability"
	internalaudit "github.com/halyard-io/authgate/internal/audit"
	internalmetrics "github.com/halyard-io/authgate/internal/metrics"
	authjwt "github.com/halyard-io/authgate/jwt"
	"github.com/halyard-io/authgate/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Construction is allocation-only; no I/O
// happens until the engine's methods are called.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	auditSink AuditSink
	drain     *DrainState

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the shared session store client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the sink receiving security events. Defaults to
// [NoOpSink] when auditing is enabled without a sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithDrainState injects a shared drain flag, letting one shutdown signal
// cover the engine and whatever else the process is draining. A fresh
// DrainState is created when none is supplied.
func (b *Builder) WithDrainState(d *DrainState) *Builder {
	b.drain = d
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the stores and codecs, and
// returns a ready Engine. A builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config: b.config,
		drain:  b.drain,
		sessionStore: session.NewStore(
			b.redis,
			b.config.Session.RedisPrefix,
			b.config.Session.SlidingExpiration,
			b.config.Session.JitterEnabled,
			b.config.Session.JitterRange,
		),
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:       b.config.Metrics.Enabled,
			EnableLatency: b.config.Metrics.EnableLatencyHistograms,
		}),
	}

	if e.drain == nil {
		e.drain = NewDrainState()
	}

	if b.config.Bearer.Enabled {
		manager, err := authjwt.NewManager(authjwt.Config{
			AccessTTL:     b.config.Bearer.AccessTTL,
			SigningMethod: bearerMethod(b.config.Bearer.SigningMethod),
			PrivateKey:    b.config.Bearer.PrivateKey,
			PublicKey:     b.config.Bearer.PublicKey,
			Issuer:        b.config.Bearer.Issuer,
			Audience:      b.config.Bearer.Audience,
			Leeway:        b.config.Bearer.Leeway,
			RequireIAT:    b.config.Bearer.RequireIAT,
			KeyID:         b.config.Bearer.KeyID,
			VerifyKeys:    b.config.Bearer.VerifyKeys,
		})
		if err != nil {
			return nil, err
		}
		e.bearer = manager
	}

	if len(b.config.Capability.Secret) > 0 {
		codec, err := capability.NewCodec(b.config.Capability.Secret, b.config.Capability.TTL)
		if err != nil {
			return nil, err
		}
		e.capability = codec
	}

	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    b.config.Audit.Enabled,
		BufferSize: b.config.Audit.BufferSize,
		DropIfFull: b.config.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true
	return e, nil
}

func bearerMethod(method string) authjwt.SigningMethod {
	if method == "hs256" {
		return authjwt.MethodHS256
	}
	return authjwt.MethodEd25519
}
