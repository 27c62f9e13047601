// Package breaker wraps the CloudOnly execution path in a circuit breaker
// so repeated upstream failures fail fast instead of piling up latency,
// generalizing the teacher framework's resilience circuit-breaker pattern
// from HTTP tool calls to cloud inference dispatch.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nimbusai/querycore/internal/telemetrylog"
)

// ErrOpen is returned when the breaker is open and rejects a call without
// attempting it.
var ErrOpen = gobreaker.ErrOpenState

// CloudBreaker guards calls to the external cloud inference backend used
// by the CloudOnly and *CloudFirst execution modes.
type CloudBreaker struct {
	cb  *gobreaker.CircuitBreaker
	log telemetrylog.Logger
}

// New creates a CloudBreaker named name. It opens after 5 consecutive
// failures within a 60s window, and probes with a single trial request
// after a 30s cooldown.
func New(name string, log telemetrylog.Logger) *CloudBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", map[string]interface{}{
				"breaker": name, "from": from.String(), "to": to.String(),
			})
		},
	}
	return &CloudBreaker{cb: gobreaker.NewCircuitBreaker(settings), log: log}
}

// Call executes fn through the breaker. If the breaker is open, fn is not
// invoked and ErrOpen is returned; the router's caller should consult the
// fallback chain when this happens.
func (b *CloudBreaker) Call(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil && errors.Is(err, gobreaker.ErrOpenState) {
		return nil, ErrOpen
	}
	return result, err
}

// State reports the breaker's current state for diagnostics/metrics.
func (b *CloudBreaker) State() gobreaker.State {
	return b.cb.State()
}
