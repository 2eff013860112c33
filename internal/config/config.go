// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig, loading failures ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the ops HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// HybridAlpha weighs collaborative against content similarity, in [0,1].
	HybridAlpha float64 `koanf:"hybrid_alpha"`

	// CandidatePool is how many candidates each recommender contributes.
	CandidatePool int `koanf:"candidate_pool"`

	// RecommendLimit is the default number of recommendations returned.
	RecommendLimit int `koanf:"recommend_limit"`

	// CooldownPeriod is how long a rejection blocks new requests.
	CooldownPeriod time.Duration `koanf:"cooldown_period"`

	// NotifyQueueSize bounds the in-memory notification queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// NotifyWorkerCount sets the number of delivery workers.
	NotifyWorkerCount int `koanf:"notify_worker_count"`

	// NotifyDedupeSize sets the size of the delivered-id cache.
	NotifyDedupeSize int `koanf:"notify_dedupe_size"`

	// NotifyBreakerTimeout is how long the delivery breaker stays open.
	NotifyBreakerTimeout time.Duration `koanf:"notify_breaker_timeout"`

	// NotifyBreakerFailures is the consecutive failure count that opens it.
	NotifyBreakerFailures uint32 `koanf:"notify_breaker_failures"`
}

// New creates a Config with defaults. Context is accepted first to satisfy the
// project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		HybridAlpha:           0.5,
		CandidatePool:         10,
		RecommendLimit:        5,
		CooldownPeriod:        24 * time.Hour,
		NotifyQueueSize:       1024,
		NotifyWorkerCount:     2,
		NotifyDedupeSize:      10_000,
		NotifyBreakerTimeout:  30 * time.Second,
		NotifyBreakerFailures: 5,
	}
}

// Validate checks value ranges.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.HybridAlpha < 0 || c.HybridAlpha > 1:
		return fmt.Errorf("%w: hybrid_alpha must be in [0,1], got %v", ErrInvalidConfig, c.HybridAlpha)
	case c.CooldownPeriod <= 0:
		return fmt.Errorf("%w: cooldown_period must be positive, got %s", ErrInvalidConfig, c.CooldownPeriod)
	case c.CandidatePool < 1:
		return fmt.Errorf("%w: candidate_pool must be >= 1, got %d", ErrInvalidConfig, c.CandidatePool)
	case c.RecommendLimit < 1:
		return fmt.Errorf("%w: recommend_limit must be >= 1, got %d", ErrInvalidConfig, c.RecommendLimit)
	case c.NotifyQueueSize < 1:
		return fmt.Errorf("%w: notify_queue_size must be >= 1, got %d", ErrInvalidConfig, c.NotifyQueueSize)
	case c.NotifyWorkerCount < 1:
		return fmt.Errorf("%w: notify_worker_count must be >= 1, got %d", ErrInvalidConfig, c.NotifyWorkerCount)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
