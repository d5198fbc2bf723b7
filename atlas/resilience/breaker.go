package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "resilience")

// State is a circuit breaker state.
type State int

// The three breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// EventKind identifies a breaker notification.
type EventKind int

// Breaker event kinds.
const (
	EventCallSuccess EventKind = iota
	EventCallFailure
	EventCallRejected
	EventCircuitOpened
	EventCircuitHalfOpen
	EventCircuitClosed
)

// Event is published on every call outcome and state transition.
type Event struct {
	Breaker string
	Kind    EventKind
	State   State
	Time    time.Time
	Err     error
}

type outcome struct {
	at time.Time
	ok bool
}

// Breaker is a three-state circuit breaker for one endpoint.
type Breaker struct {
	name string
	cfg  params.BreakerConfig
	now  func() time.Time

	mu               sync.Mutex
	state            State
	consecFailures   int
	consecSuccesses  int
	lastFailure      time.Time
	openedAt         time.Time
	window           []outcome
	halfOpenInflight int

	feed event.Feed
}

// NewBreaker returns a closed breaker for the named endpoint.
func NewBreaker(name string, cfg params.BreakerConfig) *Breaker {
	return &Breaker{
		name:  name,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

// Name of the guarded endpoint.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current breaker state, advancing Open to Half-Open when
// the cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// SubscribeEvents registers a listener channel for breaker events. Events are
// delivered on a separate goroutine so a slow listener never blocks callers.
func (b *Breaker) SubscribeEvents(ch chan<- Event) event.Subscription {
	return b.feed.Subscribe(ch)
}

// Call runs fn under the breaker. Rejected calls fail fast with
// ErrCircuitOpen and are never executed.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	trial, err := b.admit()
	if err != nil {
		b.publish(EventCallRejected, err)
		return err
	}
	if err := ctx.Err(); err != nil {
		// Cancellation consumes no breaker accounting either way, but an
		// admitted half-open slot must be returned.
		if trial {
			b.releaseTrial()
		}
		return err
	}
	callErr := fn(ctx)
	if Classify(callErr) == KindCancelled {
		if trial {
			b.releaseTrial()
		}
		return callErr
	}
	b.record(callErr == nil, trial)
	if callErr == nil {
		b.publish(EventCallSuccess, nil)
	} else {
		b.publish(EventCallFailure, callErr)
	}
	return callErr
}

// admit decides whether a call may proceed. The bool marks a half-open trial.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.currentState() {
	case StateClosed:
		return false, nil
	case StateHalfOpen:
		if b.halfOpenInflight >= b.cfg.HalfOpenMaxCalls {
			return false, ErrCircuitOpen
		}
		b.halfOpenInflight++
		return true, nil
	default:
		return false, ErrCircuitOpen
	}
}

func (b *Breaker) releaseTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.halfOpenInflight > 0 {
		b.halfOpenInflight--
	}
}

// record applies a call outcome to the state machine.
func (b *Breaker) record(success, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.window = append(b.window, outcome{at: now, ok: success})
	b.pruneWindow(now)

	switch b.state {
	case StateHalfOpen:
		if trial && b.halfOpenInflight > 0 {
			b.halfOpenInflight--
		}
		if success {
			b.consecSuccesses++
			if b.consecSuccesses >= b.cfg.SuccessThreshold {
				b.toClosed()
			}
		} else {
			b.lastFailure = now
			b.toOpen(now)
		}
	default: // Closed
		if success {
			b.consecFailures = 0
			return
		}
		b.consecFailures++
		b.lastFailure = now
		if len(b.window) >= b.cfg.VolumeThreshold && b.consecFailures >= b.cfg.FailureThreshold {
			b.toOpen(now)
		}
	}
}

// currentState must be called with the lock held. Lazily moves Open to
// Half-Open once the cooldown elapsed, so the next admitted call is a trial.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenDuration {
		b.state = StateHalfOpen
		b.consecSuccesses = 0
		b.halfOpenInflight = 0
		go b.publish(EventCircuitHalfOpen, nil)
		log.WithField("breaker", b.name).Debug("Circuit breaker half-open")
	}
	return b.state
}

func (b *Breaker) toOpen(now time.Time) {
	b.state = StateOpen
	b.openedAt = now
	b.consecSuccesses = 0
	b.halfOpenInflight = 0
	go b.publish(EventCircuitOpened, nil)
	log.WithField("breaker", b.name).Warn("Circuit breaker opened")
}

func (b *Breaker) toClosed() {
	b.state = StateClosed
	b.consecFailures = 0
	b.consecSuccesses = 0
	b.halfOpenInflight = 0
	b.window = nil
	go b.publish(EventCircuitClosed, nil)
	log.WithField("breaker", b.name).Info("Circuit breaker closed")
}

func (b *Breaker) pruneWindow(now time.Time) {
	cutoff := now.Add(-b.cfg.MonitoringWindow)
	i := 0
	for ; i < len(b.window); i++ {
		if !b.window[i].at.Before(cutoff) {
			break
		}
	}
	if i > 0 {
		b.window = append(b.window[:0:0], b.window[i:]...)
	}
}

func (b *Breaker) publish(kind EventKind, err error) {
	ev := Event{Breaker: b.name, Kind: kind, Time: b.now(), Err: err}
	b.mu.Lock()
	ev.State = b.state
	b.mu.Unlock()
	// Feed delivery can block on unbuffered subscriber channels; detach it
	// from the calling goroutine.
	go b.feed.Send(ev)
	breakerStateGauge.WithLabelValues(b.name).Set(float64(ev.State))
}

// BreakerSet hands out one breaker per endpoint.
type BreakerSet struct {
	mu  sync.Mutex
	cfg params.BreakerConfig
	m   map[string]*Breaker
}

// NewBreakerSet returns an empty breaker set.
func NewBreakerSet(cfg params.BreakerConfig) *BreakerSet {
	return &BreakerSet{cfg: cfg, m: map[string]*Breaker{}}
}

// Get returns the breaker for the endpoint, creating it on first use.
func (s *BreakerSet) Get(endpoint string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.m[endpoint]; ok {
		return b
	}
	b := NewBreaker(endpoint, s.cfg)
	s.m[endpoint] = b
	return b
}
