// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
)

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	List(ctx context.Context, f UserFilter) ([]models.User, int64, error)
	Count(ctx context.Context, f UserFilter) (int64, error)

	TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	SetRating(ctx context.Context, id primitive.ObjectID, r models.Rating) error

	// HiddenSellerIDs returns sellers whose products must not be listed
	// publicly: unapproved or deactivated.
	HiddenSellerIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// ProductRepository persists the catalog.
type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error

	// Update writes only the fields set in c and returns the product after
	// the write. Stock counters moved by orders in the meantime are kept.
	Update(ctx context.Context, id primitive.ObjectID, c ProductChanges) (*models.Product, error)

	List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error)
	Count(ctx context.Context, f ProductFilter) (int64, error)
	CategoryCounts(ctx context.Context, f ProductFilter) ([]models.CategoryCount, error)

	// DecrementStock removes qty units if at least qty remain and bumps the
	// sold counter. It returns the product after the update, or
	// ErrInsufficientStock.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (*models.Product, error)

	// IncrementStock returns qty units, reversing DecrementStock.
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error

	SetRating(ctx context.Context, id primitive.ObjectID, r models.Rating) error
}

// ProductChanges lists product fields to overwrite. Nil pointers and nil
// slices leave the stored value alone; an empty slice clears it.
type ProductChanges struct {
	Name           *string
	Description    *string
	Price          *models.Money
	CompareAtPrice *models.Money
	Stock          *int
	Category       *models.Category
	Region         *models.Region
	Images         []string
	Tags           []string
	Unit           *string
	IsActive       *bool
	IsFeatured     *bool
	UpdatedAt      time.Time
}

// Apply copies the set fields onto p.
func (c ProductChanges) Apply(p *models.Product) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.Price != nil {
		p.Price = *c.Price
	}
	if c.CompareAtPrice != nil {
		v := *c.CompareAtPrice
		p.CompareAtPrice = &v
	}
	if c.Stock != nil {
		p.Stock = *c.Stock
	}
	if c.Category != nil {
		p.Category = *c.Category
	}
	if c.Region != nil {
		p.Region = *c.Region
	}
	if c.Images != nil {
		p.Images = append([]string{}, c.Images...)
	}
	if c.Tags != nil {
		p.Tags = append([]string{}, c.Tags...)
	}
	if c.Unit != nil {
		p.Unit = *c.Unit
	}
	if c.IsActive != nil {
		p.IsActive = *c.IsActive
	}
	if c.IsFeatured != nil {
		p.IsFeatured = *c.IsFeatured
	}
	if !c.UpdatedAt.IsZero() {
		p.UpdatedAt = c.UpdatedAt
	}
}

// StatusChange is a conditional order status update.
type StatusChange struct {
	From          models.OrderStatus
	To            models.OrderStatus
	Update        models.TrackingUpdate
	CancelReason  string
	PaymentStatus models.PaymentStatus
	DeliveredAt   *time.Time
	At            time.Time
}

// Assignment attaches a delivery agent to an order.
type Assignment struct {
	AgentID primitive.ObjectID

	// Statuses lists the statuses the order may be in for the assignment
	// to apply.
	Statuses []models.OrderStatus

	// RequireUnassigned rejects orders that already have an agent.
	RequireUnassigned bool

	Update models.TrackingUpdate
	At     time.Time
}

// OrderRepository persists orders and their tracking log.
type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	CountByStatus(ctx context.Context, f OrderFilter) (map[models.OrderStatus]int64, error)

	// UpdateStatus applies c only while the stored status equals c.From and
	// returns the updated order. Tracking updates are appended, never
	// rewritten.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, c StatusChange) (*models.Order, error)

	// Assign sets the delivery agent when the order matches a's conditions,
	// or returns ErrConflict.
	Assign(ctx context.Context, id primitive.ObjectID, a Assignment) (*models.Order, error)

	// DeliveredOrderWith returns the most recent delivered order of the
	// customer that contains the product.
	DeliveredOrderWith(ctx context.Context, customerID, productID primitive.ObjectID) (*models.Order, error)
}

// CartRepository persists one cart per user. Get returns an empty cart
// for users that never saved one.
type CartRepository interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	Save(ctx context.Context, c *models.Cart) error
	Clear(ctx context.Context, userID primitive.ObjectID) error
}

// WishlistRepository persists one wishlist per user.
type WishlistRepository interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*models.Wishlist, error)
	Save(ctx context.Context, w *models.Wishlist) error
}

// ReviewRepository persists product reviews. Create returns ErrDuplicate
// for a second review of the same product by the same customer.
type ReviewRepository interface {
	Create(ctx context.Context, r *models.Review) error
	ListByProduct(ctx context.Context, productID primitive.ObjectID, p Page) ([]models.Review, int64, error)
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, p Page) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, userID, id primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Store bundles every repository of one backend.
type Store struct {
	Users         UserRepository
	Products      ProductRepository
	Orders        OrderRepository
	Carts         CartRepository
	Wishlists     WishlistRepository
	Reviews       ReviewRepository
	Notifications NotificationRepository

	// Ping reports backend health for /health/ready.
	Ping func(ctx context.Context) error

	// Close releases the backend connection.
	Close func(ctx context.Context) error
}
