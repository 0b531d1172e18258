// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
	"github.com/tomtom215/merkato/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeConnected    = "connected"
	MessageTypeNotification = "notification"
	MessageTypeAnnouncement = "announcement"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

const deliveryBuffer = 256

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// delivery is a message addressed to one user, or to everyone when
// userID is empty.
type delivery struct {
	userID  string
	message Message
}

// Hub tracks connected clients per user and routes messages to them.
// A user may hold several connections (tabs, devices); each receives
// every message addressed to the user.
type Hub struct {
	users      map[string]map[*Client]struct{}
	outbox     chan delivery
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		users:      make(map[string]map[*Client]struct{}),
		outbox:     make(chan delivery, deliveryBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext routes messages until ctx is cancelled, then closes every
// client.
//
// Client lifecycle events are handled before pending deliveries so a
// message sent right after a connection registers reaches it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case d := <-h.outbox:
			h.deliver(d)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	set, ok := h.users[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[c.userID] = set
	}
	set[c] = struct{}{}
	total := h.countLocked()
	h.mu.Unlock()
	metrics.WSConnections.Inc()

	select {
	case c.send <- Message{Type: MessageTypeConnected, Data: map[string]string{"userId": c.userID}}:
	default:
	}
	logging.Debug().Str("user_id", c.userID).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dropLocked(c) {
		logging.Debug().Str("user_id", c.userID).Int("total_clients", h.countLocked()).Msg("websocket client disconnected")
	}
}

// dropLocked removes c and closes its send channel. It reports whether c
// was registered.
func (h *Hub) dropLocked(c *Client) bool {
	set, ok := h.users[c.userID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.users, c.userID)
	}
	metrics.WSConnections.Dec()
	return true
}

func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var targets []*Client
	if d.userID == "" {
		for _, set := range h.users {
			for c := range set {
				targets = append(targets, c)
			}
		}
	} else {
		for c := range h.users[d.userID] {
			targets = append(targets, c)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	for _, c := range targets {
		select {
		case c.send <- d.message:
		default:
			// Slow consumer: disconnect rather than block everyone else.
			h.dropLocked(c)
			metrics.WSErrors.WithLabelValues("send_buffer_full").Inc()
			logging.Warn().Str("user_id", c.userID).Msg("websocket client send buffer full, disconnecting")
		}
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	count := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.users {
		for c := range set {
			close(c.send)
			metrics.WSConnections.Dec()
		}
	}
	h.users = make(map[string]map[*Client]struct{})
}

// SendToUser queues a message for every connection of userID. It returns
// false when the hub is saturated and the message was dropped.
func (h *Hub) SendToUser(userID, messageType string, data interface{}) bool {
	return h.enqueue(delivery{userID: userID, message: Message{Type: messageType, Data: data}})
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(messageType string, data interface{}) bool {
	return h.enqueue(delivery{message: Message{Type: messageType, Data: data}})
}

// PushNotification sends a stored notification to its recipient.
func (h *Hub) PushNotification(n *models.Notification) bool {
	if n == nil {
		return false
	}
	return h.SendToUser(n.UserID.Hex(), MessageTypeNotification, n)
}

func (h *Hub) enqueue(d delivery) bool {
	select {
	case h.outbox <- d:
		return true
	default:
		logging.Warn().Str("message_type", d.message.Type).Msg("websocket outbox full, dropping message")
		return false
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}

// UserCount returns the number of distinct connected users.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// IsOnline reports whether the user has at least one open connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
