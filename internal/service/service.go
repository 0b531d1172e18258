// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/analytics"
	"github.com/tomtom215/merkato/internal/audit"
	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/events"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/store"
	"github.com/tomtom215/merkato/internal/validation"
)

// Pusher delivers a notification to a connected client. The websocket hub
// implements it.
type Pusher interface {
	PushNotification(n *models.Notification) bool
}

// Deps are the collaborators shared by every service. Mailer, Events,
// Audit, Analytics and Pusher may be nil; the matching side effect is then
// skipped.
type Deps struct {
	Store     *store.Store
	Config    *config.Config
	Tokens    *auth.TokenManager
	Hasher    *auth.Hasher
	Revoked   *auth.RevocationStore
	Mailer    *notify.Mailer
	Events    events.Publisher
	Audit     *audit.Logger
	Analytics *analytics.Store
	Pusher    Pusher

	// Now defaults to time.Now.
	Now func() time.Time
}

// Services bundles one instance of every business service.
type Services struct {
	Auth          *AuthService
	Catalog       *CatalogService
	Cart          *CartService
	Orders        *OrderService
	Delivery      *DeliveryService
	Admin         *AdminService
	Users         *UserService
	Notifications *NotificationService
	Dashboards    *DashboardService
}

// New wires the services together.
func New(d Deps) (*Services, error) {
	if d.Store == nil || d.Config == nil {
		return nil, errors.New("service: store and config are required")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Hasher == nil {
		d.Hasher = auth.NewHasher(d.Config.Security.BcryptCost)
	}
	b := &base{deps: d}

	orders := &OrderService{base: b}
	delivery := &DeliveryService{base: b, orders: orders}
	return &Services{
		Auth:          &AuthService{base: b},
		Catalog:       &CatalogService{base: b},
		Cart:          &CartService{base: b},
		Orders:        orders,
		Delivery:      delivery,
		Admin:         &AdminService{base: b, orders: orders},
		Users:         &UserService{base: b},
		Notifications: &NotificationService{base: b},
		Dashboards:    &DashboardService{base: b, delivery: delivery},
	}, nil
}

// base holds the helpers every service embeds.
type base struct {
	deps Deps
}

func (b *base) store() *store.Store { return b.deps.Store }

func (b *base) now() time.Time { return b.deps.Now().UTC() }

func (b *base) pricing() models.Pricing {
	o := b.deps.Config.Orders
	return models.Pricing{
		VATRate:               o.VATRate,
		DeliveryFee:           models.NewMoney(o.DeliveryFee),
		FreeDeliveryThreshold: models.NewMoney(o.FreeDeliveryThreshold),
	}
}

func (b *base) emit(ctx context.Context, topic string, payload any) {
	events.EmitOrLog(ctx, b.deps.Events, topic, payload)
}

// email queues a templated message without waiting for delivery.
func (b *base) email(ctx context.Context, u *models.User, name notify.Name, data any) {
	if b.deps.Mailer == nil || u == nil || u.Email == "" {
		return
	}
	b.deps.Mailer.Dispatch(ctx, notify.Email{To: u.Email, ToName: u.Name, Template: name, Data: data})
}

func (b *base) auditAdmin(ctx context.Context, typ audit.EventType, target *audit.Target, description string, metadata any) {
	b.deps.Audit.Admin(ctx, typ, target, description, metadata)
}

// user loads an account or returns a not-found error with the given noun.
func (b *base) user(ctx context.Context, id primitive.ObjectID, noun string) (*models.User, error) {
	u, err := b.store().Users.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(noun + " not found")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (b *base) product(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, err := b.store().Products.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Product not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (b *base) order(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	o, err := b.store().Orders.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Order not found")
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// validate runs struct tag validation and returns a nil error interface
// when the value is valid.
func validate(v any) error {
	if verr := validation.ValidateStruct(v); verr != nil {
		return verr
	}
	return nil
}

// ParseID converts a hex path parameter into an ObjectID. An invalid value
// is reported as not found with the given noun.
func ParseID(hex, noun string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, notFound(noun + " not found")
	}
	return id, nil
}

func boolPtr(v bool) *bool { return &v }

func logWarn(ctx context.Context, err error, msg string) {
	logging.Ctx(ctx).Warn().Err(err).Msg(msg)
}
