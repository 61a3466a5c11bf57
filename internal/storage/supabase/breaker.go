package supabase

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the circuit breaker is in open state
// and rejects requests to stop hammering an unreachable backend.
var ErrCircuitOpen = errors.New("backend circuit breaker is open")

// breakerConfig holds the configuration for the backend circuit breaker.
type breakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip
	// the circuit.
	MaxFailures uint32

	// Timeout is the duration the circuit stays open before transitioning
	// to half-open.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of successes required in
	// half-open state to close the circuit again.
	HalfOpenMaxSuccesses uint32
}

// backendBreaker wraps gobreaker around Supabase REST calls. One breaker
// guards all record-store traffic; a project that is down fails every
// table equally, so there is no point tracking them separately.
type backendBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

func newBackendBreaker() *backendBreaker {
	return newBackendBreakerWithConfig(breakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	})
}

func newBackendBreakerWithConfig(config breakerConfig) *backendBreaker {
	settings := gobreaker.Settings{
		Name:        "SupabaseBackend",
		MaxRequests: config.HalfOpenMaxSuccesses,
		Interval:    0, // Don't clear counts periodically
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
	}

	return &backendBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// execute runs fn through the circuit breaker. If the circuit is open it
// returns ErrCircuitOpen immediately. The context is checked before the
// call; the underlying PostgREST client does not accept one.
func (b *backendBreaker) execute(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current breaker state: "closed", "open", or "half-open".
func (b *backendBreaker) State() string {
	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
