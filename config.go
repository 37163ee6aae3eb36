package credauth

import (
	"crypto/subtle"
	"errors"
	"time"
)

// Config defines all tunables of the engine.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Tokens  TokenConfig
	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds token lifetimes and signing secrets. Both secrets are
// required and must differ; [Builder.Build] refuses to construct an engine
// without them. There is no built-in fallback secret.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls the Redis key namespace of the refresh-token store.
type StoreConfig struct {
	RedisPrefix string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counter registry.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 15 minute access tokens,
// 7 day refresh tokens, no signing secrets. Secrets must always be supplied
// by the deployment.
func DefaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			RedisPrefix: "ca",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.AccessSecret = append([]byte(nil), cfg.Tokens.AccessSecret...)
	out.Tokens.RefreshSecret = append([]byte(nil), cfg.Tokens.RefreshSecret...)
	return out
}

func validateConfig(cfg Config) error {
	if cfg.Tokens.AccessTTL <= 0 || cfg.Tokens.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if cfg.Tokens.RefreshTTL <= cfg.Tokens.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if len(cfg.Tokens.AccessSecret) == 0 {
		return errors.New("access token secret is required")
	}
	if len(cfg.Tokens.RefreshSecret) == 0 {
		return errors.New("refresh token secret is required")
	}
	if len(cfg.Tokens.AccessSecret) == len(cfg.Tokens.RefreshSecret) &&
		subtle.ConstantTimeCompare(cfg.Tokens.AccessSecret, cfg.Tokens.RefreshSecret) == 1 {
		return errors.New("access and refresh secrets must differ")
	}
	if cfg.Tokens.Leeway < 0 || cfg.Tokens.Leeway > 2*time.Minute {
		return errors.New("invalid leeway configuration")
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}
	return nil
}
