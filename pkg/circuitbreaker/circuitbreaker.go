// Package circuitbreaker builds the breakers guarding calls to remote nodes.
package circuitbreaker

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Settings tune when a breaker trips. Zero fields take the default value.
type Settings struct {
	// MinRequests is the number of requests counted before the breaker can
	// trip.
	MinRequests uint32
	// FailingRatio is the share of failed requests that trips the breaker.
	FailingRatio float64
	// OpenTimeout is how long a tripped breaker refuses calls before letting
	// a probe through.
	OpenTimeout time.Duration
}

var DefaultSettings = Settings{
	MinRequests:  10,
	FailingRatio: 0.6,
	OpenTimeout:  30 * time.Second,
}

// NewCircuitBreaker returns a breaker with DefaultSettings.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return New(name, DefaultSettings)
}

// New returns a breaker named after the guarded resource. State changes are
// logged.
func New(name string, settings Settings) *gobreaker.CircuitBreaker {
	if name == "" {
		name = "circuitbreaker"
	}
	if settings.MinRequests == 0 {
		settings.MinRequests = DefaultSettings.MinRequests
	}
	if settings.FailingRatio <= 0 {
		settings.FailingRatio = DefaultSettings.FailingRatio
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultSettings.OpenTimeout
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
}
