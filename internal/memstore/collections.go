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

// ========================================
// Carts and wishlists
// ========================================

type cartRepo struct{ db *DB }

func (r *cartRepo) Get(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.carts[userID]
	if !ok {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	c.Items = append([]models.CartItem{}, c.Items...)
	return &c, nil
}

func (r *cartRepo) Save(_ context.Context, c *models.Cart) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *c
	cp.Items = append([]models.CartItem{}, c.Items...)
	r.db.carts[c.UserID] = cp
	return nil
}

func (r *cartRepo) Clear(_ context.Context, userID primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.carts, userID)
	return nil
}

type wishlistRepo struct{ db *DB }

func (r *wishlistRepo) Get(_ context.Context, userID primitive.ObjectID) (*models.Wishlist, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	w, ok := r.db.wishlists[userID]
	if !ok {
		return &models.Wishlist{UserID: userID, Items: []models.WishlistItem{}}, nil
	}
	w.Items = append([]models.WishlistItem{}, w.Items...)
	return &w, nil
}

func (r *wishlistRepo) Save(_ context.Context, w *models.Wishlist) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *w
	cp.Items = append([]models.WishlistItem{}, w.Items...)
	r.db.wishlists[w.UserID] = cp
	return nil
}

// ========================================
// Reviews
// ========================================

type reviewRepo struct{ db *DB }

func (r *reviewRepo) Create(_ context.Context, rv *models.Review) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.reviews {
		if existing.ProductID == rv.ProductID && existing.CustomerID == rv.CustomerID {
			return store.ErrDuplicate
		}
	}
	ensureID(&rv.ID)
	r.db.reviews[rv.ID] = *rv
	return nil
}

func (r *reviewRepo) ListByProduct(_ context.Context, productID primitive.ObjectID, p store.Page) ([]models.Review, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	all := []models.Review{}
	for _, rv := range r.db.reviews {
		if rv.ProductID == productID {
			all = append(all, rv)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, p), int64(len(all)), nil
}

// ========================================
// Notifications
// ========================================

type notificationRepo struct{ db *DB }

func (r *notificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if n.Key != "" {
		for _, existing := range r.db.notifications {
			if existing.Key == n.Key {
				return store.ErrDuplicate
			}
		}
	}
	ensureID(&n.ID)
	r.db.notifications[n.ID] = *n
	return nil
}

func (r *notificationRepo) List(_ context.Context, userID primitive.ObjectID, unreadOnly bool, p store.Page) ([]models.Notification, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	all := []models.Notification{}
	for _, n := range r.db.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, p), int64(len(all)), nil
}

func (r *notificationRepo) MarkRead(_ context.Context, userID, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notifications[id]
	if !ok || n.UserID != userID {
		return store.ErrNotFound
	}
	n.Read = true
	r.db.notifications[id] = n
	return nil
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var changed int64
	for id, n := range r.db.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.db.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (r *notificationRepo) UnreadCount(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var n int64
	for _, note := range r.db.notifications {
		if note.UserID == userID && !note.Read {
			n++
		}
	}
	return n, nil
}
