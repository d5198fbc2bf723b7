package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shadowatlas/shadow-atlas/shared/params"
)

// Harness combines the breaker set with the retry policy. Every outbound
// portal call in the pipeline goes through Do.
type Harness struct {
	breakers *BreakerSet
	retry    params.RetryConfig
}

// NewHarness builds a harness from the pipeline configuration.
func NewHarness(cfg *params.AtlasConfig) *Harness {
	return &Harness{
		breakers: NewBreakerSet(cfg.Breaker),
		retry:    cfg.Retry,
	}
}

// Breaker exposes the breaker guarding an endpoint, mainly for listeners.
func (h *Harness) Breaker(endpoint string) *Breaker {
	return h.breakers.Get(endpoint)
}

// Do runs fn under the endpoint's breaker with exponential backoff retries.
// Only transient failures are retried; CircuitOpen, permanent failures,
// validation outcomes and cancellation surface immediately.
func (h *Harness) Do(ctx context.Context, endpoint string, fn func(context.Context) error) error {
	br := h.breakers.Get(endpoint)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = h.retry.InitialDelay
	policy.Multiplier = h.retry.BackoffMultiplier
	policy.MaxInterval = h.retry.MaxDelay
	policy.MaxElapsedTime = 0 // attempts are bounded by count, not wall clock
	policy.RandomizationFactor = 0
	policy.Reset()

	attempts := 0
	operation := func() error {
		attempts++
		if attempts > 1 {
			retryAttemptsCounter.WithLabelValues(endpoint).Inc()
		}
		err := br.Call(ctx, fn)
		if err == nil {
			callOutcomeCounter.WithLabelValues(endpoint, "success").Inc()
			return nil
		}
		kind := Classify(err)
		callOutcomeCounter.WithLabelValues(endpoint, kind.String()).Inc()
		if !Retryable(kind) || attempts >= h.retry.MaxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if permanent, ok := err.(*backoff.PermanentError); ok {
		return permanent.Err
	}
	return err
}

// Delays returns the retry schedule implied by the config: one wait before
// each retry, capped at MaxDelay. Only the tests call it.
func Delays(cfg params.RetryConfig) []time.Duration {
	if cfg.MaxAttempts <= 1 {
		return nil
	}
	out := make([]time.Duration, 0, cfg.MaxAttempts-1)
	d := cfg.InitialDelay
	for i := 1; i < cfg.MaxAttempts; i++ {
		if d > cfg.MaxDelay {
			d = cfg.MaxDelay
		}
		out = append(out, d)
		d = time.Duration(float64(d) * cfg.BackoffMultiplier)
	}
	return out
}
