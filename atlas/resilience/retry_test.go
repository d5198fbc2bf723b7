package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHarnessConfig() *params.AtlasConfig {
	cfg := params.DefaultAtlasConfig()
	cfg.Retry = params.RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          5 * time.Millisecond,
	}
	cfg.Breaker.FailureThreshold = 100
	cfg.Breaker.VolumeThreshold = 100
	return cfg
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"context-cancel", context.Canceled, KindCancelled},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"circuit-open", ErrCircuitOpen, KindCircuitOpen},
		{"empty-parse", ErrEmptyParse, KindTransient},
		{"http-500", &HTTPStatusError{StatusCode: 500}, KindTransient},
		{"http-429", &HTTPStatusError{StatusCode: 429}, KindTransient},
		{"http-404", &HTTPStatusError{StatusCode: 404}, KindPermanent},
		{"http-403", &HTTPStatusError{StatusCode: 403}, KindPermanent},
		{"tagged", WithKind(KindHalt, errors.New("stop")), KindHalt},
		{"wrapped-status", errors.Wrap(&HTTPStatusError{StatusCode: 503}, "fetch"), KindTransient},
		{"unknown", errors.New("mystery"), KindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestHarness_RetriesTransient(t *testing.T) {
	h := NewHarness(testHarnessConfig())
	attempts := 0
	err := h.Do(context.Background(), "portal.example.gov", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &HTTPStatusError{URL: "u", StatusCode: 503}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestHarness_ExhaustsAttempts(t *testing.T) {
	h := NewHarness(testHarnessConfig())
	attempts := 0
	err := h.Do(context.Background(), "portal.example.gov", func(context.Context) error {
		attempts++
		return &HTTPStatusError{URL: "u", StatusCode: 500}
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "max_attempts bounds the retries")
	assert.Equal(t, KindTransient, Classify(err))
}

func TestHarness_NoRetryOnPermanent(t *testing.T) {
	h := NewHarness(testHarnessConfig())
	attempts := 0
	err := h.Do(context.Background(), "portal.example.gov", func(context.Context) error {
		attempts++
		return &HTTPStatusError{URL: "u", StatusCode: 404}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "4xx is never retried")
}

func TestHarness_NoRetryOnCancellation(t *testing.T) {
	h := NewHarness(testHarnessConfig())
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := h.Do(ctx, "portal.example.gov", func(context.Context) error {
		attempts++
		cancel()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestHarness_CircuitOpenSurfacesImmediately(t *testing.T) {
	cfg := testHarnessConfig()
	cfg.Breaker.FailureThreshold = 1
	cfg.Breaker.VolumeThreshold = 1
	cfg.Breaker.OpenDuration = time.Hour
	h := NewHarness(cfg)

	require.Error(t, h.Do(context.Background(), "dead.example.gov", func(context.Context) error {
		return &HTTPStatusError{URL: "u", StatusCode: 404}
	}))
	attempts := 0
	err := h.Do(context.Background(), "dead.example.gov", func(context.Context) error {
		attempts++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, attempts, "open breaker rejects without executing")
	assert.Equal(t, KindCircuitOpen, Classify(err))
}

func TestDelays(t *testing.T) {
	delays := Delays(params.RetryConfig{
		MaxAttempts:       4,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          300 * time.Millisecond,
	})
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}, delays)
}
