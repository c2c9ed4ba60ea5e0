// Package breaker guards upstream stores with circuit breakers so a failing
// dependency is rejected fast instead of holding every request open.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Defaults for Settings.
const (
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 30 * time.Second
	DefaultHalfOpenRequests = 1
)

// ErrOpen is returned while a breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// Settings configures a Breaker. Zero values fall back to the defaults.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration

	// HalfOpenRequests bounds concurrent probes while half-open.
	HalfOpenRequests uint32
}

// Breaker wraps a gobreaker.CircuitBreaker with logging and metrics.
// A nil *Breaker passes calls straight through.
type Breaker struct {
	name    string
	cb      *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
	metrics *Metrics
}

// New creates a Breaker named after the store it guards.
// metrics and logger may be nil.
func New(name string, s Settings, logger *slog.Logger, metrics *Metrics) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = DefaultOpenTimeout
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = DefaultHalfOpenRequests
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Breaker{name: name, logger: logger, metrics: metrics}
	metrics.setState(name, gobreaker.StateClosed)

	threshold := s.FailureThreshold
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the store.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", stateName(from)),
				slog.String("to", stateName(to)),
			)
			b.metrics.setState(name, to)
			b.metrics.incTransition(name, stateName(from), stateName(to))
		},
	})
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// State returns the current state as "closed", "half-open" or "open".
func (b *Breaker) State() string {
	if b == nil {
		return stateName(gobreaker.StateClosed)
	}
	return stateName(b.cb.State())
}

// Do runs fn under b. Rejected calls return an error matching ErrOpen.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if b == nil {
		return fn()
	}

	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.metrics.incRejected(b.name)
			return zero, fmt.Errorf("%s: %w", b.name, ErrOpen)
		}
		return zero, err
	}

	typed, ok := result.(T)
	if !ok && result != nil {
		var zero T
		return zero, fmt.Errorf("circuit breaker %s: unexpected result type %T", b.name, result)
	}
	return typed, nil
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
