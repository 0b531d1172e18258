// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

// activeDeliveryStatuses are the statuses of an order an agent is working on.
var activeDeliveryStatuses = []models.OrderStatus{
	models.StatusReadyForPickup,
	models.StatusDispatched,
	models.StatusInTransit,
}

// DeliveryService serves delivery agents.
type DeliveryService struct {
	*base
	orders *OrderService
}

// Assigned lists the orders assigned to agent.
func (s *DeliveryService) Assigned(ctx context.Context, agent *models.User, statuses []models.OrderStatus, page store.Page) ([]models.Order, int64, error) {
	id := agent.ID
	return s.store().Orders.List(ctx, store.OrderFilter{AgentID: &id, Statuses: statuses, Page: page})
}

// Available lists ready-for-pickup orders that nobody has claimed.
func (s *DeliveryService) Available(ctx context.Context, page store.Page) ([]models.Order, int64, error) {
	return s.store().Orders.List(ctx, store.OrderFilter{
		Statuses:   []models.OrderStatus{models.StatusReadyForPickup},
		Unassigned: true,
		Page:       page,
	})
}

// Claim assigns an unclaimed ready-for-pickup order to agent. Of two
// agents claiming at once, only one succeeds.
func (s *DeliveryService) Claim(ctx context.Context, agent *models.User, id primitive.ObjectID) (*models.Order, error) {
	if !agent.CanDeliver() {
		return nil, newError(ErrNotApproved, "Your delivery account is pending approval")
	}
	if agent.Delivery == nil || !agent.Delivery.Available {
		return nil, badRequest("Set yourself as available before claiming orders")
	}
	o, err := s.order(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.DeliveryAgentID != nil {
		return nil, conflict("Order has already been claimed")
	}
	if o.Status != models.StatusReadyForPickup {
		return nil, conflict("Only orders ready for pickup can be claimed")
	}
	return s.orders.assign(ctx, agent, agent, o, true, []models.OrderStatus{models.StatusReadyForPickup})
}

// UpdateStatus moves an assigned order along the delivery leg.
func (s *DeliveryService) UpdateStatus(ctx context.Context, agent *models.User, id primitive.ObjectID, in StatusInput) (*models.Order, error) {
	return s.orders.UpdateStatus(ctx, agent, id, in)
}

// SetAvailability toggles whether the agent accepts new deliveries.
func (s *DeliveryService) SetAvailability(ctx context.Context, agent *models.User, available bool) (*models.User, error) {
	u, err := s.user(ctx, agent.ID, "User")
	if err != nil {
		return nil, err
	}
	if u.Delivery == nil {
		u.Delivery = &models.DeliveryProfile{VehicleType: "motorcycle"}
	}
	u.Delivery.Available = available
	u.UpdatedAt = s.now()
	if err := s.store().Users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update availability: %w", err)
	}
	return u, nil
}

// DeliveryStats summarises an agent's workload.
type DeliveryStats struct {
	Assigned  int64 `json:"assigned"`
	Active    int64 `json:"active"`
	Delivered int64 `json:"delivered"`
	Cancelled int64 `json:"cancelled"`
	Available bool  `json:"available"`

	// AverageDeliveryMinutes is measured from placement to delivery. It is
	// zero when analytics are disabled or nothing was delivered.
	AverageDeliveryMinutes float64 `json:"averageDeliveryMinutes"`
}

// Stats counts the agent's orders by stage.
func (s *DeliveryService) Stats(ctx context.Context, agent *models.User) (*DeliveryStats, error) {
	id := agent.ID
	counts, err := s.store().Orders.CountByStatus(ctx, store.OrderFilter{AgentID: &id})
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	st := &DeliveryStats{
		Delivered: counts[models.StatusDelivered],
		Cancelled: counts[models.StatusCancelled],
		Available: agent.Delivery != nil && agent.Delivery.Available,
	}
	for _, n := range counts {
		st.Assigned += n
	}
	for _, status := range activeDeliveryStatuses {
		st.Active += counts[status]
	}
	if a := s.deps.Analytics; a != nil {
		avg, err := a.AverageDeliveryTime(ctx, id.Hex(), time.Time{})
		if err != nil {
			logWarn(ctx, err, "Failed to compute average delivery time")
		} else {
			st.AverageDeliveryMinutes = avg.Minutes()
		}
	}
	return st, nil
}
