// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package events

import (
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
)

// BreakerSettings tunes the breaker in front of the NATS publisher.
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:             "nats-publish",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
	}
}

// breakerPublisher fails fast while JetStream is unreachable so request
// handlers calling EmitOrLog are not held up by publish timeouts.
type breakerPublisher struct {
	next message.Publisher
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func newBreakerPublisher(next message.Publisher, s BreakerSettings) *breakerPublisher {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerState(name, int(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Event publish circuit breaker changed state")
		},
	})
	metrics.RecordCircuitBreakerState(s.Name, int(gobreaker.StateClosed))
	return &breakerPublisher{next: next, cb: cb}
}

func (p *breakerPublisher) Publish(topic string, msgs ...*message.Message) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.Publish(topic, msgs...)
	})
	switch {
	case err == nil:
		metrics.RecordCircuitBreakerRequest(p.cb.Name(), "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(p.cb.Name(), "rejected")
	default:
		metrics.RecordCircuitBreakerRequest(p.cb.Name(), "failure")
	}
	return err
}

func (p *breakerPublisher) Close() error { return p.next.Close() }
