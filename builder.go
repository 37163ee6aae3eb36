package credauth

import (
	"errors"

	"github.com/credauth/credauth/store"
	"github.com/credauth/credauth/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Construction is allocation-only; no I/O
// happens before the first Engine call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	provider  SubjectProvider
	auditSink AuditSink

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
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the refresh-token store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithProvider sets the subject-provider collaborator.
func (b *Builder) WithProvider(p SubjectProvider) *Builder {
	b.provider = p
	return b
}

// WithAuditSink sets the audit sink and enables audit dispatch.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the in-process counter registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder is
// single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.provider == nil {
		return nil, errors.New("subject provider is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		AccessTTL:     b.config.Tokens.AccessTTL,
		RefreshTTL:    b.config.Tokens.RefreshTTL,
		AccessSecret:  b.config.Tokens.AccessSecret,
		RefreshSecret: b.config.Tokens.RefreshSecret,
		Issuer:        b.config.Tokens.Issuer,
		Leeway:        b.config.Tokens.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   b.config,
		codec:    codec,
		store:    store.New(b.redis, b.config.Store.RedisPrefix),
		provider: b.provider,
		audit:    newAuditDispatcher(b.config.Audit, b.auditSink),
	}
	if b.config.Metrics.Enabled {
		engine.metrics = newMetrics()
	}

	b.built = true
	return engine, nil
}
