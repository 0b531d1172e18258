// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
)

// RouterConfig tunes handler retries and the poison queue.
type RouterConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	PoisonTopic          string
}

// RouterConfigFrom reads the router settings from the events section.
func RouterConfigFrom(cfg *config.EventsConfig) RouterConfig {
	rc := RouterConfig{
		CloseTimeout:         cfg.CloseTimeout,
		RetryMaxRetries:      cfg.RetryCount,
		RetryInitialInterval: cfg.RetryInterval,
		RetryMaxInterval:     time.Minute,
		PoisonTopic:          cfg.PoisonTopic,
	}
	if rc.CloseTimeout <= 0 {
		rc.CloseTimeout = 30 * time.Second
	}
	if rc.RetryInitialInterval <= 0 {
		rc.RetryInitialInterval = time.Second
	}
	if rc.PoisonTopic == "" {
		rc.PoisonTopic = DefaultPoisonTopic
	}
	return rc
}

// HandlerFunc processes one decoded message.
type HandlerFunc func(ctx context.Context, msg *message.Message) error

// Router runs consumers with panic recovery, retries with backoff and a
// poison queue for messages that keep failing.
type Router struct {
	bus    *Bus
	router *message.Router
	config RouterConfig
}

// NewRouter builds a router on bus. Middleware runs outer to inner:
// poison queue, recoverer, retry, metrics.
func NewRouter(bus *Bus, cfg RouterConfig) (*Router, error) {
	wm, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, bus.Logger())
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	poison, err := middleware.PoisonQueue(bus.RawPublisher(), cfg.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	wm.AddMiddleware(poison)
	wm.AddMiddleware(middleware.Recoverer)

	if cfg.RetryMaxRetries > 0 {
		retry := middleware.Retry{
			MaxRetries:      cfg.RetryMaxRetries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
			Multiplier:      2.0,
			Logger:          bus.Logger(),
		}
		wm.AddMiddleware(retry.Middleware)
	}

	r := &Router{bus: bus, router: wm, config: cfg}
	if err := r.addPoisonLogger(); err != nil {
		return nil, err
	}
	return r, nil
}

// Handle registers a consumer of topic. name must be unique; on NATS it is
// also the durable consumer name.
func (r *Router) Handle(name, topic string, fn HandlerFunc) error {
	sub, err := r.bus.Subscriber(name)
	if err != nil {
		return err
	}
	r.router.AddConsumerHandler(name, topic, sub, func(msg *message.Message) error {
		ctx := MessageContext(msg)
		start := time.Now()
		err := fn(ctx, msg)
		metrics.RecordEventProcessed(topic, err == nil)

		ev := logging.Ctx(ctx).Debug()
		if err != nil {
			ev = logging.Ctx(ctx).Warn().Err(err)
		}
		ev.Str("handler", name).
			Str("topic", topic).
			Str("event_id", msg.UUID).
			Dur("duration", time.Since(start)).
			Msg("Event handled")
		return err
	})
	return nil
}

// addPoisonLogger records messages that exhausted their retries.
func (r *Router) addPoisonLogger() error {
	sub, err := r.bus.Subscriber("poison-logger")
	if err != nil {
		return err
	}
	r.router.AddConsumerHandler("poison-logger", r.config.PoisonTopic, sub, func(msg *message.Message) error {
		logging.Ctx(MessageContext(msg)).Error().
			Str("event_id", msg.UUID).
			Str("topic", msg.Metadata.Get(middleware.PoisonedTopicKey)).
			Str("handler", msg.Metadata.Get(middleware.PoisonedHandlerKey)).
			Str("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)).
			Msg("Event moved to poison queue")
		return nil
	})
	return nil
}

// Run blocks until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Serve lets the router run under the supervisor.
func (r *Router) Serve(ctx context.Context) error {
	return r.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

func (r *Router) IsRunning() bool { return r.router.IsRunning() }

// Close waits up to CloseTimeout for in-flight handlers.
func (r *Router) Close() error {
	return r.router.Close()
}

func (r *Router) String() string { return "events-router" }
