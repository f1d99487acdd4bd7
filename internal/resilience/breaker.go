// Package resilience guards calls to optional upstream services so that a
// failing service is skipped quickly instead of slowing every request.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is the position of a Breaker.
type State int

const (
	// Closed lets calls through.
	Closed State = iota
	// Open rejects calls until the cooldown elapses.
	Open
	// HalfOpen lets a single probe through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when a call is rejected without being attempted.
var ErrOpen = eris.New("resilience: circuit open")

// BreakerConfig controls a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default: 5.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration
	// ShouldTrip decides whether an error counts as a failure. Nil counts
	// every error. A cancelled call never reached the upstream and counts as
	// neither failure nor success.
	ShouldTrip func(err error) bool
	// OnStateChange is called under the breaker lock on every transition.
	OnStateChange func(from, to State)
}

// Stats is a point-in-time view of a Breaker.
type Stats struct {
	State    string `json:"state"`
	Failures int    `json:"consecutive_failures"`
	Rejected int64  `json:"rejected"`
}

// Breaker is a consecutive-failure circuit breaker for one upstream.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	rejected int64

	nowFunc func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = func(error) bool { return true }
	}
	return &Breaker{cfg: cfg, nowFunc: time.Now}
}

// Do runs fn unless the breaker is open, in which case ErrOpen is returned.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for functions that return a value.
func DoValue[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	probe, err := b.admit()
	if err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(probe, err)
	return v, err
}

// State returns the current state, reporting HalfOpen once the cooldown of an
// open breaker has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.cooledDown() {
		return HalfOpen
	}
	return b.state
}

// Stats returns a snapshot for status endpoints.
func (b *Breaker) Stats() Stats {
	state := b.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{State: state.String(), Failures: b.failures, Rejected: b.rejected}
}

// Reset closes the breaker and forgets past failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.transition(Closed)
}

func (b *Breaker) cooledDown() bool {
	return b.nowFunc().Sub(b.openedAt) >= b.cfg.Cooldown
}

// admit decides whether a call may proceed. The returned flag marks the call
// as the half-open probe.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.cooledDown() {
		b.transition(HalfOpen)
	}

	switch b.state {
	case Open:
		b.rejected++
		return false, ErrOpen
	case HalfOpen:
		if b.probing {
			b.rejected++
			return false, ErrOpen
		}
		b.probing = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	failed := err != nil && b.cfg.ShouldTrip(err)
	if !failed {
		b.failures = 0
		if b.state == HalfOpen && probe {
			b.transition(Closed)
		}
		return
	}

	b.failures++
	switch {
	case b.state == HalfOpen && probe:
		b.open()
	case b.state == Closed && b.failures >= b.cfg.FailureThreshold:
		b.open()
	}
}

func (b *Breaker) open() {
	b.openedAt = b.nowFunc()
	b.transition(Open)
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
