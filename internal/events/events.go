// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/models"
)

// Topics. All of them live under the merkato.> subject space so a single
// JetStream stream captures them.
const (
	TopicOrderCreated       = "merkato.order.created"
	TopicOrderStatusChanged = "merkato.order.status_changed"
	TopicOrderAssigned      = "merkato.order.assigned"
	TopicUserRegistered     = "merkato.user.registered"

	DefaultPoisonTopic = "merkato.poison"
)

// Metadata keys set on every published message.
const (
	MetaEventType = "event_type"
	MetaUserID    = "user_id"
)

// OrderItemFact is one order line as seen by consumers.
type OrderItemFact struct {
	ProductID string       `json:"productId"`
	SellerID  string       `json:"sellerId"`
	Name      string       `json:"name"`
	Category  string       `json:"category"`
	Quantity  int          `json:"quantity"`
	Price     models.Money `json:"price"`
	LineTotal models.Money `json:"lineTotal"`
}

// OrderCreated is published after an order and its stock reservations are
// committed.
type OrderCreated struct {
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	CustomerID    string          `json:"customerId"`
	Items         []OrderItemFact `json:"items"`
	Subtotal      models.Money    `json:"subtotal"`
	DeliveryFee   models.Money    `json:"deliveryFee"`
	VAT           models.Money    `json:"vat"`
	Total         models.Money    `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	City          string          `json:"city"`
	Region        string          `json:"region"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewOrderCreated snapshots o.
func NewOrderCreated(o *models.Order) OrderCreated {
	ev := OrderCreated{
		OrderID:       o.ID.Hex(),
		OrderNumber:   o.OrderNumber,
		CustomerID:    o.CustomerID.Hex(),
		Items:         make([]OrderItemFact, 0, len(o.Items)),
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		VAT:           o.VAT,
		Total:         o.Total,
		PaymentMethod: string(o.PaymentMethod),
		City:          o.ShippingAddress.City,
		Region:        string(o.ShippingAddress.Region),
		CreatedAt:     o.CreatedAt,
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, OrderItemFact{
			ProductID: it.ProductID.Hex(),
			SellerID:  it.SellerID.Hex(),
			Name:      it.Name,
			Category:  string(it.Category),
			Quantity:  it.Quantity,
			Price:     it.Price,
			LineTotal: it.LineTotal,
		})
	}
	return ev
}

// OrderStatusChanged is published after every committed transition.
type OrderStatusChanged struct {
	OrderID         string             `json:"orderId"`
	OrderNumber     string             `json:"orderNumber"`
	CustomerID      string             `json:"customerId"`
	SellerIDs       []string           `json:"sellerIds"`
	DeliveryAgentID string             `json:"deliveryAgentId,omitempty"`
	From            models.OrderStatus `json:"from"`
	To              models.OrderStatus `json:"to"`
	ActorID         string             `json:"actorId"`
	ActorRole       models.Role        `json:"actorRole"`
	Message         string             `json:"message,omitempty"`
	Location        string             `json:"location,omitempty"`
	Total           models.Money       `json:"total"`
	At              time.Time          `json:"at"`
}

// NewOrderStatusChanged describes the move of o from the given status to
// its current one.
func NewOrderStatusChanged(o *models.Order, from models.OrderStatus, actor *models.User) OrderStatusChanged {
	ev := OrderStatusChanged{
		OrderID:     o.ID.Hex(),
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID.Hex(),
		From:        from,
		To:          o.Status,
		Total:       o.Total,
		At:          o.UpdatedAt,
	}
	for _, id := range o.SellerIDs() {
		ev.SellerIDs = append(ev.SellerIDs, id.Hex())
	}
	if o.DeliveryAgentID != nil {
		ev.DeliveryAgentID = o.DeliveryAgentID.Hex()
	}
	if actor != nil {
		ev.ActorID = actor.ID.Hex()
		ev.ActorRole = actor.Role
	}
	if last, ok := o.LastUpdate(); ok {
		ev.Message = last.Message
		ev.Location = last.Location
		if ev.At.IsZero() {
			ev.At = last.Timestamp
		}
	}
	return ev
}

// OrderAssigned is published when a delivery agent is attached to an order.
type OrderAssigned struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	CustomerID  string    `json:"customerId"`
	AgentID     string    `json:"agentId"`
	AssignedBy  string    `json:"assignedBy"`
	At          time.Time `json:"at"`
}

// UserRegistered is published after sign-up.
type UserRegistered struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
	Region string      `json:"region,omitempty"`
	At     time.Time   `json:"at"`
}

// NewMessage encodes payload as JSON and stamps the correlation id of ctx so
// consumers can log against the originating request.
func NewMessage(ctx context.Context, topic string, payload any) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetaEventType, topic)

	id := logging.CorrelationIDFromContext(ctx)
	if id == "" {
		id = logging.RequestIDFromContext(ctx)
	}
	if id == "" {
		id = msg.UUID
	}
	middleware.SetCorrelationID(id, msg)

	if uid := logging.UserIDFromContext(ctx); uid != "" {
		msg.Metadata.Set(MetaUserID, uid)
	}
	return msg, nil
}

// Decode unmarshals the payload of msg into T.
func Decode[T any](msg *message.Message) (T, error) {
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return v, nil
}

// MessageContext returns a context carrying the correlation id of msg.
func MessageContext(msg *message.Message) context.Context {
	ctx := context.WithValue(msg.Context(), messageIDKey{}, msg.UUID)
	if id := middleware.MessageCorrelationID(msg); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	return ctx
}

type messageIDKey struct{}

// MessageID returns the UUID of the message being handled, or "" outside a
// handler. Retries and redeliveries carry the same UUID.
func MessageID(ctx context.Context) string {
	id, _ := ctx.Value(messageIDKey{}).(string)
	return id
}

// ParseID converts a hex id carried in an event.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id %q in event: %w", hex, err)
	}
	return id, nil
}
