// Package config loads the gateway's YAML configuration, following the
// teacher's guardrails.LoadConfig pattern (read file, unmarshal, apply
// defaults) generalised to every tunable the pipeline needs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ScannerConfig toggles which built-in scanners run.
type ScannerConfig struct {
	PII             bool          `yaml:"pii"`
	Secrets         bool          `yaml:"secrets"`
	PromptInjection bool          `yaml:"prompt_injection"`
	ScanTimeout     time.Duration `yaml:"scan_timeout"`
}

// CacheConfig bounds the response cache.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	MaxBytes   int64         `yaml:"max_bytes"`
	TTL        time.Duration `yaml:"ttl"`
}

// DedupConfig bounds the in-flight request deduplicator.
type DedupConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// PoolConfig bounds the per-host connection pool.
type PoolConfig struct {
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	AcquireTimeout  time.Duration `yaml:"acquire_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

// BreakerConfig bounds the per-host circuit breaker registry.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	OpenDuration     time.Duration `yaml:"open_duration"`
	MaxBreakers      int           `yaml:"max_breakers"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
}

// StreamConfig bounds the streaming response pipeline.
type StreamConfig struct {
	ChunkTimeout time.Duration `yaml:"chunk_timeout"`
	MaxBuffered  int           `yaml:"max_buffered_chunks"`
}

// RateLimitConfig configures the admission-control rate limiter.
type RateLimitConfig struct {
	Enabled           bool   `yaml:"enabled"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Burst             int    `yaml:"burst"`
	RedisAddr         string `yaml:"redis_addr"` // empty = in-memory limiter
	RedisPassword     string `yaml:"redis_password"`
	RedisDB           int    `yaml:"redis_db"`
}

// VaultConfig configures the S3-compatible blob store used for audit
// evidence.
type VaultConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// AuditConfig configures the external audit collaborator.
type AuditConfig struct {
	WebhookURL          string   `yaml:"webhook_url"`
	ChainSecret         string   `yaml:"chain_secret"`
	ComplianceFrameworks []string `yaml:"compliance_frameworks"`
}

// TracingConfig configures OTel span export.
type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	ServiceName    string `yaml:"service_name"`
}

// Config is the gateway's complete runtime configuration.
type Config struct {
	ListenAddr     string          `yaml:"listen_addr"`
	GatewayKey     string          `yaml:"gateway_key"`
	TransparentURL string          `yaml:"transparent_url"` // if set, requests with no "/proxy/" prefix forward here
	Dev            bool            `yaml:"dev"`
	Scanners       ScannerConfig   `yaml:"scanners"`
	Cache          CacheConfig     `yaml:"cache"`
	Dedup          DedupConfig     `yaml:"dedup"`
	Pool           PoolConfig      `yaml:"pool"`
	Breaker        BreakerConfig   `yaml:"breaker"`
	Stream         StreamConfig    `yaml:"stream"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Vault          VaultConfig     `yaml:"vault"`
	Audit          AuditConfig     `yaml:"audit"`
	Tracing        TracingConfig   `yaml:"tracing"`
}

// Load reads and parses the YAML config file at path, applying defaults for
// every unset field. An empty path returns Default() unmodified.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns a Config with every field set to its production default.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Scanners.ScanTimeout <= 0 {
		cfg.Scanners.ScanTimeout = 10 * time.Second
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 10_000
	}
	if cfg.Cache.MaxBytes <= 0 {
		cfg.Cache.MaxBytes = 256 << 20 // 256MiB
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.Dedup.Timeout <= 0 {
		cfg.Dedup.Timeout = 30 * time.Second
	}
	if cfg.Pool.MaxConnsPerHost <= 0 {
		cfg.Pool.MaxConnsPerHost = 32
	}
	if cfg.Pool.AcquireTimeout <= 0 {
		cfg.Pool.AcquireTimeout = 5 * time.Second
	}
	if cfg.Pool.IdleTimeout <= 0 {
		cfg.Pool.IdleTimeout = 90 * time.Second
	}
	if cfg.Pool.UpstreamTimeout <= 0 {
		cfg.Pool.UpstreamTimeout = 120 * time.Second
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.SuccessThreshold <= 0 {
		cfg.Breaker.SuccessThreshold = 2
	}
	if cfg.Breaker.OpenDuration <= 0 {
		cfg.Breaker.OpenDuration = 60 * time.Second
	}
	if cfg.Breaker.MaxBreakers <= 0 {
		cfg.Breaker.MaxBreakers = 1000
	}
	if cfg.Breaker.IdleTimeout <= 0 {
		cfg.Breaker.IdleTimeout = time.Hour
	}
	if cfg.Stream.ChunkTimeout <= 0 {
		cfg.Stream.ChunkTimeout = 30 * time.Second
	}
	if cfg.Stream.MaxBuffered <= 0 {
		cfg.Stream.MaxBuffered = 64
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 50
	}
	if len(cfg.Audit.ComplianceFrameworks) == 0 {
		cfg.Audit.ComplianceFrameworks = []string{"SOC2", "ISO27001"}
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "grc-gateway"
	}
}
