// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keychain.
//
// go-keychain is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the bekd deployment configuration from YAML with
// environment variable overrides, and builds the runtime collaborators
// (logger, storage, RNG, rate limiter) it describes.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/adapters/logger"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/bekd"
	cryptorand "github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/crypto/rand"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/group"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/ledger"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/metrics"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/ratelimit"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/storage"
	"github.com/sAeNrDER/Decentrlised-BEKD-for--Biometric-Authentication/pkg/storage/file"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageFile   = "file"
)

// Config represents the complete deployment configuration
type Config struct {
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Authority AuthorityConfig `yaml:"authority"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	RNG       RNGConfig       `yaml:"rng"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ProtocolConfig holds the sharing parameters and authentication policy
type ProtocolConfig struct {
	Threshold     int    `yaml:"threshold"`
	Features      int    `yaml:"features"`
	ConsumePolicy string `yaml:"consume_policy"`
	HashSpec      string `yaml:"hash_spec"`
	// MaxSubsets caps the subset search. Zero searches all subsets.
	MaxSubsets int `yaml:"max_subsets"`
}

// AuthorityConfig locates the enrollment authority key
type AuthorityConfig struct {
	KeyFile string `yaml:"key_file"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig selects the ledger backend
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// RNGConfig selects the randomness source
type RNGConfig struct {
	Mode string `yaml:"mode"`
	// Seed is a hex-encoded 32-byte seed for deterministic mode.
	Seed string `yaml:"seed"`
}

// RateLimitConfig controls per-identity authentication throttling
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// MetricsConfig toggles prometheus collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration for a single-process deployment with
// in-memory storage and the operating system RNG.
func Default() *Config {
	p := bekd.DefaultParams()
	return &Config{
		Protocol: ProtocolConfig{
			Threshold:     p.Threshold,
			Features:      p.Features,
			ConsumePolicy: bekd.ConsumeOnSuccess.String(),
			HashSpec:      group.HashSpec,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Backend: StorageMemory,
		},
		RNG: RNGConfig{
			Mode: string(cryptorand.ModeSoftware),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			Burst:             10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides.
// Fields absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FromEnv returns Default with environment variable overrides applied.
func FromEnv() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envInt(name string, current int, min int) int {
	v := os.Getenv(name)
	if v == "" {
		return current
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using default %d: %v", name, v, current, err)
		return current
	}
	if n < min {
		log.Printf("Warning: invalid %s value %q (must be >= %d), using default %d", name, v, min, current)
		return current
	}
	return n
}

func envBool(name string, current bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return current
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using default %t: %v", name, v, current, err)
		return current
	}
	return b
}

// applyEnvOverrides applies BEKD_* environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Protocol
	cfg.Protocol.Threshold = envInt("BEKD_THRESHOLD", cfg.Protocol.Threshold, 0)
	cfg.Protocol.Features = envInt("BEKD_FEATURES", cfg.Protocol.Features, 1)
	cfg.Protocol.MaxSubsets = envInt("BEKD_MAX_SUBSETS", cfg.Protocol.MaxSubsets, 0)
	if policy := os.Getenv("BEKD_CONSUME_POLICY"); policy != "" {
		cfg.Protocol.ConsumePolicy = policy
	}

	if keyFile := os.Getenv("BEKD_AUTHORITY_KEY_FILE"); keyFile != "" {
		cfg.Authority.KeyFile = keyFile
	}

	// Logging
	if level := os.Getenv("BEKD_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("BEKD_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Storage
	if backend := os.Getenv("BEKD_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dataDir := os.Getenv("BEKD_STORAGE_PATH"); dataDir != "" {
		cfg.Storage.Path = dataDir
		if os.Getenv("BEKD_STORAGE_BACKEND") == "" {
			cfg.Storage.Backend = StorageFile
		}
	}

	// RNG
	if mode := os.Getenv("BEKD_RNG_MODE"); mode != "" {
		cfg.RNG.Mode = mode
	}
	if seed := os.Getenv("BEKD_RNG_SEED"); seed != "" {
		cfg.RNG.Seed = seed
	}

	// Rate limiting
	cfg.RateLimit.Enabled = envBool("BEKD_RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = envInt("BEKD_RATELIMIT_REQUESTS_PER_MINUTE", cfg.RateLimit.RequestsPerMinute, 1)
	cfg.RateLimit.Burst = envInt("BEKD_RATELIMIT_BURST", cfg.RateLimit.Burst, 0)

	cfg.Metrics.Enabled = envBool("BEKD_METRICS_ENABLED", cfg.Metrics.Enabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("invalid protocol parameters: %w", err)
	}
	if _, err := bekd.ParseConsumePolicy(c.Protocol.ConsumePolicy); err != nil {
		return err
	}
	if c.Protocol.HashSpec != "" && c.Protocol.HashSpec != group.HashSpec {
		return fmt.Errorf("unsupported hash_spec: %s (must be %s)", c.Protocol.HashSpec, group.HashSpec)
	}
	if c.Protocol.MaxSubsets < 0 {
		return fmt.Errorf("max_subsets must not be negative: %d", c.Protocol.MaxSubsets)
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case StorageMemory:
	case StorageFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path must be specified for the file backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or file)", c.Storage.Backend)
	}

	switch cryptorand.Mode(strings.ToLower(c.RNG.Mode)) {
	case cryptorand.ModeSoftware:
	case cryptorand.ModeDeterministic:
		if _, err := cryptorand.ParseSeed(c.RNG.Seed); err != nil {
			return fmt.Errorf("invalid rng seed: %w", err)
		}
	default:
		return fmt.Errorf("invalid rng mode: %s (must be software or deterministic)", c.RNG.Mode)
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("ratelimit requests_per_minute must be positive when enabled")
	}

	return nil
}

// Params returns the sharing parameters.
func (c *Config) Params() bekd.Params {
	return bekd.Params{Threshold: c.Protocol.Threshold, Features: c.Protocol.Features}
}

// Policy returns the parsed consume policy. Validate has already
// rejected unknown values.
func (c *Config) Policy() bekd.ConsumePolicy {
	p, _ := bekd.ParseConsumePolicy(c.Protocol.ConsumePolicy)
	return p
}

// NewLogger builds the structured logger described by the logging section.
func (c *Config) NewLogger() logger.Logger {
	level, err := logger.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logger.LevelInfo
	}
	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  level,
		Format: c.Logging.Format,
	})
}

// OpenStorage opens the configured storage backend.
func (c *Config) OpenStorage() (storage.Backend, error) {
	switch strings.ToLower(c.Storage.Backend) {
	case StorageFile:
		fs, err := file.New(c.Storage.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		return storage.NewMemory(), nil
	}
}

// OpenLedger opens the configured backend wrapped as a ledger.
func (c *Config) OpenLedger() (*ledger.Ledger, error) {
	backend, err := c.OpenStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return ledger.New(backend), nil
}

// NewResolver builds the configured randomness source.
func (c *Config) NewResolver() (cryptorand.Resolver, error) {
	mode := cryptorand.Mode(strings.ToLower(c.RNG.Mode))
	if mode != cryptorand.ModeDeterministic {
		return cryptorand.NewResolver(cryptorand.ModeSoftware)
	}
	seed, err := cryptorand.ParseSeed(c.RNG.Seed)
	if err != nil {
		return nil, err
	}
	return cryptorand.NewResolver(&cryptorand.Config{Mode: mode, Seed: seed})
}

// NewLimiter builds the per-identity rate limiter. The caller must Stop it.
func (c *Config) NewLimiter() *ratelimit.Limiter {
	return ratelimit.New(&ratelimit.Config{
		Enabled:           c.RateLimit.Enabled,
		RequestsPerMinute: c.RateLimit.RequestsPerMinute,
		Burst:             c.RateLimit.Burst,
	})
}

// ApplyMetrics enables or disables metric collection process-wide.
func (c *Config) ApplyMetrics() {
	if c.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}
}
