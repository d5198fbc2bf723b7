// Package resilience wraps every outbound portal call in a per-endpoint
// circuit breaker and an exponential backoff retry harness.
package resilience

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/pkg/errors"
)

// Kind buckets an error by how the harness must react to it.
type Kind int

// Error kinds, ordered roughly by severity.
const (
	// KindTransient covers network errors, timeouts, HTTP 5xx/429 and empty
	// parse results. Retried by the harness.
	KindTransient Kind = iota
	// KindPermanent covers HTTP 4xx (non-429) and malformed bodies.
	// Reported, never retried.
	KindPermanent
	// KindValidationReject is a non-halting validation outcome.
	KindValidationReject
	// KindHalt aborts the pipeline.
	KindHalt
	// KindCircuitOpen is a rejection by an open breaker.
	KindCircuitOpen
	// KindCancelled is cooperative cancellation. Never retried.
	KindCancelled
	// KindConfig marks an invalid configuration.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindValidationReject:
		return "validation-reject"
	case KindHalt:
		return "validation-halt"
	case KindCircuitOpen:
		return "circuit-open"
	case KindCancelled:
		return "cancelled"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned for calls rejected by an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// kindError attaches an explicit Kind to an underlying error.
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Kind() Kind    { return e.kind }

// WithKind tags err with an explicit kind, overriding classification.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// HTTPStatusError carries a non-2xx response status through the harness.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d from %s", e.StatusCode, e.URL)
}

// ErrEmptyParse marks a structurally valid but featureless payload, which is
// most often a portal hiccup and therefore worth a retry.
var ErrEmptyParse = errors.New("parsed artifact contains no features")

// Classify maps an error to the Kind the harness reacts to.
func Classify(err error) Kind {
	if err == nil {
		return KindTransient
	}
	var tagged *kindError
	if errors.As(err, &tagged) {
		return tagged.kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindCircuitOpen
	}
	if errors.Is(err, ErrEmptyParse) {
		return KindTransient
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 429:
			return KindTransient
		case statusErr.StatusCode >= 500:
			return KindTransient
		case statusErr.StatusCode >= 400:
			return KindPermanent
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindTransient
	}
	return KindPermanent
}

// Retryable reports whether the harness may retry an error of this kind.
func Retryable(kind Kind) bool {
	return kind == KindTransient
}
