// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package memstore

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

type orderRepo struct{ db *DB }

func (r *orderRepo) Create(_ context.Context, o *models.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.orders {
		if existing.OrderNumber == o.OrderNumber {
			return store.ErrDuplicate
		}
	}
	ensureID(&o.ID)
	r.db.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneOrder(o)
	return &out, nil
}

func (r *orderRepo) matching(f store.OrderFilter) []models.Order {
	out := []models.Order{}
	for _, o := range r.db.orders {
		if f.Matches(&o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *orderRepo) List(_ context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	all := r.matching(f)
	return page(all, f.Page), int64(len(all)), nil
}

func (r *orderRepo) CountByStatus(_ context.Context, f store.OrderFilter) (map[models.OrderStatus]int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	counts := map[models.OrderStatus]int64{}
	for _, o := range r.db.orders {
		if f.Matches(&o) {
			counts[o.Status]++
		}
	}
	return counts, nil
}

func (r *orderRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, c store.StatusChange) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if o.Status != c.From {
		return nil, store.ErrConflict
	}
	o.Status = c.To
	o.TrackingUpdates = append(o.TrackingUpdates, c.Update)
	if c.CancelReason != "" {
		o.CancelReason = c.CancelReason
	}
	if c.PaymentStatus != "" {
		o.PaymentStatus = c.PaymentStatus
	}
	if c.DeliveredAt != nil {
		t := *c.DeliveredAt
		o.DeliveredAt = &t
	}
	o.UpdatedAt = c.At
	r.db.orders[id] = o
	out := cloneOrder(o)
	return &out, nil
}

func (r *orderRepo) Assign(_ context.Context, id primitive.ObjectID, a store.Assignment) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if a.RequireUnassigned && o.DeliveryAgentID != nil {
		return nil, store.ErrConflict
	}
	if len(a.Statuses) > 0 {
		allowed := false
		for _, s := range a.Statuses {
			if o.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, store.ErrConflict
		}
	}
	agent := a.AgentID
	o.DeliveryAgentID = &agent
	o.TrackingUpdates = append(o.TrackingUpdates, a.Update)
	o.UpdatedAt = a.At
	r.db.orders[id] = o
	out := cloneOrder(o)
	return &out, nil
}

func (r *orderRepo) DeliveredOrderWith(_ context.Context, customerID, productID primitive.ObjectID) (*models.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var best *models.Order
	for _, o := range r.db.orders {
		if o.CustomerID != customerID || o.Status != models.StatusDelivered || !o.HasProduct(productID) {
			continue
		}
		if best == nil || o.CreatedAt.After(best.CreatedAt) {
			c := cloneOrder(o)
			best = &c
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	o.TrackingUpdates = append([]models.TrackingUpdate(nil), o.TrackingUpdates...)
	if o.DeliveryAgentID != nil {
		id := *o.DeliveryAgentID
		o.DeliveryAgentID = &id
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}
