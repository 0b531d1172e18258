// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus closed")

// Publisher is what business code needs from the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Bus owns the publisher, the subscribers and, for NATS, the connection and
// optional embedded server.
type Bus struct {
	backend   string
	logger    watermill.LoggerAdapter
	publisher message.Publisher

	// newSubscriber builds a subscriber for one named consumer.
	newSubscriber func(name string) (message.Subscriber, error)

	mu          sync.Mutex
	closed      bool
	subscribers []message.Subscriber
	closers     []func() error
}

// NewBus connects to the configured backend.
func NewBus(ctx context.Context, cfg *config.EventsConfig) (*Bus, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemoryBus(), nil
	case BackendNATS:
		return newNATSBus(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// NewMemoryBus returns an in-process bus on a watermill GoChannel. Messages
// published while no handler is subscribed are dropped.
func NewMemoryBus() *Bus {
	logger := logging.NewWatermillAdapter()
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	b := &Bus{
		backend:   BackendMemory,
		logger:    logger,
		publisher: ch,
		newSubscriber: func(string) (message.Subscriber, error) {
			return ch, nil
		},
	}
	b.closers = append(b.closers, ch.Close)
	return b
}

// Backend names the transport in use.
func (b *Bus) Backend() string { return b.backend }

// Logger is shared with the router.
func (b *Bus) Logger() watermill.LoggerAdapter { return b.logger }

// RawPublisher exposes the watermill publisher for the poison queue.
func (b *Bus) RawPublisher() message.Publisher { return b.publisher }

// Subscriber returns the subscriber for a named consumer. On NATS each name
// gets its own durable consumer.
func (b *Bus) Subscriber(name string) (message.Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	sub, err := b.newSubscriber(name)
	if err != nil {
		return nil, fmt.Errorf("subscriber %s: %w", name, err)
	}
	if b.backend != BackendMemory {
		b.subscribers = append(b.subscribers, sub)
	}
	return sub, nil
}

// Publish encodes payload and publishes it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	msg, err := NewMessage(ctx, topic, payload)
	if err != nil {
		return err
	}
	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.EventsPublished.WithLabelValues(topic).Inc()
	logging.Ctx(ctx).Debug().Str("topic", topic).Str("event_id", msg.UUID).Msg("Event published")
	return nil
}

// Close shuts subscribers first, then the publisher and connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subscribers
	closers := b.closers
	b.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EmitOrLog publishes and logs a failure instead of returning it. Business
// operations call it after their write is committed, where a lost event must
// not undo the operation.
func EmitOrLog(ctx context.Context, p Publisher, topic string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, topic, payload); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("Failed to publish event")
	}
}
