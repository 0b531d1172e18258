// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/logging"
)

// StreamName is the JetStream stream holding every merkato.> subject.
const StreamName = "MERKATO"

const (
	streamMaxAge       = 7 * 24 * time.Hour
	duplicateWindow    = 2 * time.Minute
	defaultAckWait     = 30 * time.Second
	defaultMaxDeliver  = 5
	defaultMaxPending  = 256
	serverReadyTimeout = 30 * time.Second
)

// EmbeddedServer runs NATS with JetStream inside the process for
// single-instance deployments.
type EmbeddedServer struct {
	server *server.Server
}

// StartEmbeddedServer starts a loopback-only NATS server. An empty storeDir
// keeps JetStream data in a temporary directory chosen by the server.
func StartEmbeddedServer(storeDir string) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "merkato-events",
		Host:       "127.0.0.1",
		Port:       server.RANDOM_PORT,
		JetStream:  true,
		StoreDir:   storeDir,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(serverReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within %s", serverReadyTimeout)
	}
	return &EmbeddedServer{server: ns}, nil
}

func (s *EmbeddedServer) ClientURL() string { return s.server.ClientURL() }

func (s *EmbeddedServer) Close() error {
	s.server.Shutdown()
	s.server.WaitForShutdown()
	return nil
}

func newNATSBus(ctx context.Context, cfg *config.EventsConfig) (*Bus, error) {
	logger := logging.NewWatermillAdapter()
	b := &Bus{backend: BackendNATS, logger: logger}

	url := cfg.NATSURL
	if cfg.EmbeddedServer {
		es, err := StartEmbeddedServer(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, es.Close)
		url = es.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	fail := func(err error) (*Bus, error) {
		_ = b.Close() //nolint:errcheck // already returning the cause
		return nil, err
	}

	nc, err := natsgo.Connect(url, connOptions("merkato-admin", logger)...)
	if err != nil {
		return fail(fmt.Errorf("connect to NATS at %s: %w", url, err))
	}
	b.closers = append(b.closers, func() error { nc.Close(); return nil })

	if err := ensureStream(ctx, nc); err != nil {
		return fail(err)
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: connOptions("merkato-publisher", logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("create NATS publisher: %w", err))
	}
	b.publisher = newBreakerPublisher(&msgIDPublisher{pub}, DefaultBreakerSettings())
	b.closers = append(b.closers, pub.Close)

	prefix := cfg.DurablePrefix
	if prefix == "" {
		prefix = "merkato"
	}
	subscribers := cfg.SubscribersCount
	if subscribers <= 0 {
		subscribers = 1
	}
	closeTimeout := cfg.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 30 * time.Second
	}

	b.newSubscriber = func(name string) (message.Subscriber, error) {
		durable := durableName(prefix, name)
		return wmNats.NewSubscriber(wmNats.SubscriberConfig{
			URL:              url,
			QueueGroupPrefix: durable,
			SubscribersCount: subscribers,
			AckWaitTimeout:   defaultAckWait,
			CloseTimeout:     closeTimeout,
			NatsOptions:      connOptions("merkato-"+name, logger),
			Unmarshaler:      &wmNats.NATSMarshaler{},
			JetStream: wmNats.JetStreamConfig{
				AutoProvision: false,
				AckAsync:      false,
				DurablePrefix: durable,
				SubscribeOptions: []natsgo.SubOpt{
					natsgo.BindStream(StreamName),
					natsgo.MaxDeliver(defaultMaxDeliver),
					natsgo.MaxAckPending(defaultMaxPending),
					natsgo.AckWait(defaultAckWait),
					natsgo.DeliverNew(),
				},
			},
		}, logger)
	}
	return b, nil
}

// ensureStream creates or updates the MERKATO stream.
func ensureStream(ctx context.Context, nc *natsgo.Conn) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{"merkato.>"},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		MaxAge:     streamMaxAge,
		Duplicates: duplicateWindow,
		Discard:    jetstream.DiscardOld,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}

func connOptions(name string, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name(name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"client": name})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"client": name, "url": nc.ConnectedUrl()})
		}),
	}
}

// durableName builds a JetStream durable name, which may not contain dots
// or wildcards.
func durableName(prefix, name string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return r.Replace(prefix + "_" + name)
}

// msgIDPublisher sets Nats-Msg-Id so JetStream drops redelivered publishes
// inside the duplicate window.
type msgIDPublisher struct {
	message.Publisher
}

func (p *msgIDPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, m := range msgs {
		if m.Metadata.Get(natsgo.MsgIdHdr) == "" {
			m.Metadata.Set(natsgo.MsgIdHdr, m.UUID)
		}
	}
	return p.Publisher.Publish(topic, msgs...)
}
