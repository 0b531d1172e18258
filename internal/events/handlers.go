// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/orderflow"
)

// AnalyticsSink stores order facts for the dashboards.
type AnalyticsSink interface {
	IngestOrder(ctx context.Context, ev OrderCreated) error
	IngestStatusChange(ctx context.Context, ev OrderStatusChanged) error
	IngestSignup(ctx context.Context, ev UserRegistered) error
}

// Notifier persists an in-app notification and pushes it to connected
// clients.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// RegisterAnalytics subscribes sink to the order and user topics.
func RegisterAnalytics(r *Router, sink AnalyticsSink) error {
	return errors.Join(
		r.Handle("analytics-orders", TopicOrderCreated, decoded(sink.IngestOrder)),
		r.Handle("analytics-status", TopicOrderStatusChanged, decoded(sink.IngestStatusChange)),
		r.Handle("analytics-signups", TopicUserRegistered, decoded(sink.IngestSignup)),
	)
}

// RegisterNotifications subscribes the in-app notification fan-out.
func RegisterNotifications(r *Router, n Notifier) error {
	f := &fanout{notifier: n}
	return errors.Join(
		r.Handle("notify-order-created", TopicOrderCreated, decoded(f.orderCreated)),
		r.Handle("notify-status-changed", TopicOrderStatusChanged, decoded(f.statusChanged)),
		r.Handle("notify-assigned", TopicOrderAssigned, decoded(f.assigned)),
	)
}

func decoded[T any](fn func(context.Context, T) error) HandlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		ev, err := Decode[T](msg)
		if err != nil {
			return err
		}
		return fn(ctx, ev)
	}
}

type fanout struct {
	notifier Notifier
}

// orderCreated tells the customer the order was placed and each seller that
// a new order arrived.
func (f *fanout) orderCreated(ctx context.Context, ev OrderCreated) error {
	orderID, err := ParseID(ev.OrderID)
	if err != nil {
		return err
	}
	var out []*models.Notification

	if customer, err := ParseID(ev.CustomerID); err == nil {
		out = append(out, &models.Notification{
			UserID:  customer,
			Type:    models.NotificationOrderPlaced,
			Title:   "Order placed",
			Message: fmt.Sprintf("Your order %s for %s ETB was placed.", ev.OrderNumber, ev.Total),
			OrderID: &orderID,
		})
	}

	perSeller := make(map[string]int)
	var sellers []string
	for _, it := range ev.Items {
		if _, seen := perSeller[it.SellerID]; !seen {
			sellers = append(sellers, it.SellerID)
		}
		perSeller[it.SellerID] += it.Quantity
	}
	for _, s := range sellers {
		sellerID, err := ParseID(s)
		if err != nil {
			continue
		}
		out = append(out, &models.Notification{
			UserID:  sellerID,
			Type:    models.NotificationNewOrder,
			Title:   "New order",
			Message: fmt.Sprintf("Order %s includes %d unit(s) of your products.", ev.OrderNumber, perSeller[s]),
			OrderID: &orderID,
		})
	}
	return f.send(ctx, out)
}

// statusChanged tells the customer about every move. Sellers hear about
// cancellations and deliveries, and the assigned agent hears when the order
// is ready for pickup.
func (f *fanout) statusChanged(ctx context.Context, ev OrderStatusChanged) error {
	orderID, err := ParseID(ev.OrderID)
	if err != nil {
		return err
	}
	label := orderflow.Describe(ev.To).Label
	var out []*models.Notification

	if ev.CustomerID != ev.ActorID {
		if customer, err := ParseID(ev.CustomerID); err == nil {
			msg := fmt.Sprintf("Order %s is now %s.", ev.OrderNumber, label)
			if ev.Message != "" {
				msg += " " + ev.Message
			}
			out = append(out, &models.Notification{
				UserID:  customer,
				Type:    models.NotificationOrderStatus,
				Title:   "Order " + label,
				Message: msg,
				OrderID: &orderID,
			})
		}
	}

	if ev.To == models.StatusCancelled || ev.To == models.StatusDelivered {
		for _, s := range ev.SellerIDs {
			if s == ev.ActorID {
				continue
			}
			sellerID, err := ParseID(s)
			if err != nil {
				continue
			}
			out = append(out, &models.Notification{
				UserID:  sellerID,
				Type:    models.NotificationOrderStatus,
				Title:   "Order " + label,
				Message: fmt.Sprintf("Order %s was %s.", ev.OrderNumber, label),
				OrderID: &orderID,
			})
		}
	}

	if ev.DeliveryAgentID != "" && ev.DeliveryAgentID != ev.ActorID &&
		(ev.To == models.StatusReadyForPickup || ev.To == models.StatusCancelled) {
		if agent, err := ParseID(ev.DeliveryAgentID); err == nil {
			out = append(out, &models.Notification{
				UserID:  agent,
				Type:    models.NotificationOrderStatus,
				Title:   "Order " + label,
				Message: fmt.Sprintf("Order %s is now %s.", ev.OrderNumber, label),
				OrderID: &orderID,
			})
		}
	}
	return f.send(ctx, out)
}

func (f *fanout) assigned(ctx context.Context, ev OrderAssigned) error {
	orderID, err := ParseID(ev.OrderID)
	if err != nil {
		return err
	}
	agent, err := ParseID(ev.AgentID)
	if err != nil {
		return err
	}
	return f.send(ctx, []*models.Notification{{
		UserID:  agent,
		Type:    models.NotificationAssignment,
		Title:   "New delivery",
		Message: fmt.Sprintf("You have been assigned order %s.", ev.OrderNumber),
		OrderID: &orderID,
	}})
}

// send delivers every notification and reports the failures together.
// Each notification is keyed by message and recipient, so when the message
// is retried the recipients that already got it are skipped by the store.
func (f *fanout) send(ctx context.Context, ns []*models.Notification) error {
	msgID := MessageID(ctx)
	var errs []error
	for _, n := range ns {
		if n.UserID == primitive.NilObjectID {
			continue
		}
		if msgID != "" {
			n.Key = msgID + ":" + n.UserID.Hex() + ":" + string(n.Type)
		}
		if err := f.notifier.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", n.UserID.Hex(), err))
		}
	}
	return errors.Join(errs...)
}
