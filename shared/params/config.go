// Package params defines the immutable configuration record for the atlas
// pipeline. The config is built once at init and passed by shared reference;
// nothing mutates it after OverrideAtlasConfig.
package params

import (
	"time"

	"github.com/pkg/errors"
)

// RetryConfig governs the exponential backoff harness.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// BreakerConfig governs the per-endpoint circuit breaker state machine.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenDuration     time.Duration
	HalfOpenMaxCalls int
	MonitoringWindow time.Duration
	VolumeThreshold  int
}

// HaltConfig selects which validation failures abort the pipeline.
type HaltConfig struct {
	OnTopology     bool
	OnCompleteness bool
	OnCoordinate   bool
}

// CrossConfig governs cross-source validation.
type CrossConfig struct {
	TolerancePercent   float64
	MinOverlapPercent  float64
	RequireBothSources bool
	// HaltOnCritical is reserved; the cross validator currently never halts.
	HaltOnCritical bool
}

// MerkleConfig governs the commitment engine.
type MerkleConfig struct {
	MinDepth     int
	SentinelHash [32]byte
}

// AtlasConfig is the single typed configuration record for a pipeline run.
type AtlasConfig struct {
	MaxParallel      int
	RateLimitPerHost float64 // requests per second, per host

	RequestTimeout  time.Duration
	UnitTimeout     time.Duration
	StateTimeout    time.Duration
	PipelineTimeout time.Duration

	Retry   RetryConfig
	Breaker BreakerConfig
	Halt    HaltConfig
	Cross   CrossConfig
	Merkle  MerkleConfig

	MinQualityScore   int
	SimplifyAreaRatio float64
	MaxRingVertices   int
	MaxInvalidRatio   float64

	// StateGIS crawler limits.
	CrawlMaxDepth     int
	CrawlMinHostDelay time.Duration
}

// DefaultAtlasConfig returns the full-US build configuration.
func DefaultAtlasConfig() *AtlasConfig {
	return &AtlasConfig{
		MaxParallel:      6,
		RateLimitPerHost: 2.0,

		RequestTimeout:  30 * time.Second,
		UnitTimeout:     120 * time.Second,
		StateTimeout:    10 * time.Minute,
		PipelineTimeout: 10 * time.Minute,

		Retry: RetryConfig{
			MaxAttempts:       4,
			InitialDelay:      500 * time.Millisecond,
			BackoffMultiplier: 2.0,
			MaxDelay:          30 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			OpenDuration:     60 * time.Second,
			HalfOpenMaxCalls: 1,
			MonitoringWindow: 120 * time.Second,
			VolumeThreshold:  5,
		},
		Halt: HaltConfig{
			OnTopology:     true,
			OnCompleteness: true,
			OnCoordinate:   true,
		},
		Cross: CrossConfig{
			TolerancePercent:  0.1,
			MinOverlapPercent: 95,
		},
		Merkle: MerkleConfig{
			MinDepth: 14,
		},

		MinQualityScore:   70,
		SimplifyAreaRatio: 0.999,
		MaxRingVertices:   5000,
		MaxInvalidRatio:   0,

		CrawlMaxDepth:     2,
		CrawlMinHostDelay: 100 * time.Millisecond,
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *AtlasConfig) Validate() error {
	if c.MaxParallel < 1 {
		return errors.New("max_parallel must be >= 1")
	}
	if c.RateLimitPerHost <= 0 {
		return errors.New("rate_limit_per_host must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return errors.New("retry.backoff_multiplier must be >= 1")
	}
	if c.Breaker.FailureThreshold < 1 || c.Breaker.SuccessThreshold < 1 {
		return errors.New("breaker thresholds must be >= 1")
	}
	if c.Breaker.HalfOpenMaxCalls < 1 {
		return errors.New("breaker.half_open_max_calls must be >= 1")
	}
	if c.MinQualityScore < 0 || c.MinQualityScore > 100 {
		return errors.New("validation.min_quality_score must be within [0,100]")
	}
	if c.Merkle.MinDepth < 1 || c.Merkle.MinDepth > 62 {
		return errors.New("merkle.min_depth out of range")
	}
	if c.MaxInvalidRatio < 0 || c.MaxInvalidRatio > 1 {
		return errors.New("validation.max_invalid_ratio must be within [0,1]")
	}
	return nil
}

var atlasConfig = DefaultAtlasConfig()

// AtlasConfigVals retrieves the atlas config.
func AtlasConfigVals() *AtlasConfig {
	return atlasConfig
}

// OverrideAtlasConfig by replacing the config. The preferred pattern is to
// call AtlasConfigVals(), change the specific parameters, and then call
// OverrideAtlasConfig(c). Any subsequent calls to params.AtlasConfigVals()
// will return this new configuration.
func OverrideAtlasConfig(c *AtlasConfig) {
	atlasConfig = c
}
