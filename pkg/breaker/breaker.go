// Package breaker builds circuit breakers for wrapping an external
// collaborator's calls (graph store, search index, embedding backend) so
// a stalled dependency degrades to fast failures instead of exhausting
// every worker's retry budget against it. No client in this module is
// constructed through it.
package breaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Config holds the breaker thresholds for one typed external call.
type Config struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// Default returns a breaker configuration suited to a single external
// collaborator (graph store, search index, or embedding backend): trip
// once 60% of at least 3 requests in the rolling window fail.
func Default(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// New builds a gobreaker.CircuitBreaker[T] typed to the result of the
// wrapped call, e.g. breaker.New[*http.Response](cfg, logger).
func New[T any](cfg Config, logger *zap.Logger) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}
