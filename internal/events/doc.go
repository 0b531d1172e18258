// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package events carries domain events between the HTTP layer and background
consumers over Watermill.

Two transports are supported:

  - memory: a watermill GoChannel inside the process (default, tests)
  - nats: NATS JetStream through watermill-nats, optionally with an
    embedded nats-server. A single MERKATO stream captures merkato.>.

Topics:

	merkato.order.created         OrderCreated
	merkato.order.status_changed  OrderStatusChanged
	merkato.order.assigned        OrderAssigned
	merkato.user.registered       UserRegistered

Events are published after the corresponding write is committed, with the
request's correlation id in the message metadata. Consumers run on a Router
that recovers panics, retries with exponential backoff and finally moves the
message to the poison topic, where it is logged.

RegisterAnalytics feeds the DuckDB sales store. RegisterNotifications turns
order events into in-app notifications for customers, sellers and delivery
agents.
*/
package events
