// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/memstore"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/store"
)

const testPassword = "selam-1234"

// recordingPublisher collects published events by topic.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

// recordingTransport collects sent email.
type recordingTransport struct {
	mu   sync.Mutex
	sent []*notify.Message
}

func (r *recordingTransport) Name() string { return "recording" }

func (r *recordingTransport) Send(_ context.Context, msg *notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingTransport) templates() []notify.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Name, len(r.sent))
	for i, m := range r.sent {
		out[i] = m.Template
	}
	return out
}

// recordingPusher records pushed notifications.
type recordingPusher struct {
	pushed atomic.Int64
}

func (p *recordingPusher) PushNotification(*models.Notification) bool {
	p.pushed.Add(1)
	return true
}

type fixture struct {
	svc    *Services
	store  *store.Store
	events *recordingPublisher
	mail   *recordingTransport
	mailer *notify.Mailer
	pusher *recordingPusher
	seq    atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Security.JWTSecret = "merkato-test-secret-0123456789abcdef"
	cfg.Security.BcryptCost = 4
	cfg.Email.BulkDelay = time.Millisecond

	tokens, err := auth.NewTokenManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	mail := &recordingTransport{}
	mailer, err := notify.NewMailer(&cfg.Email, notify.Site{Name: "Merkato", URL: "https://merkato.example/"}, mail)
	if err != nil {
		t.Fatalf("NewMailer: %v", err)
	}
	t.Cleanup(func() { _ = mailer.Close(context.Background()) })

	f := &fixture{
		store:  memstore.NewStore(),
		events: &recordingPublisher{},
		mail:   mail,
		mailer: mailer,
		pusher: &recordingPusher{},
	}
	f.svc, err = New(Deps{
		Store:  f.store,
		Config: cfg,
		Tokens: tokens,
		Hasher: auth.NewHasher(cfg.Security.BcryptCost),
		Mailer: mailer,
		Events: f.events,
		Pusher: f.pusher,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// flushMail waits for queued email to be handed to the transport.
func (f *fixture) flushMail(t *testing.T) []notify.Name {
	t.Helper()
	if err := f.mailer.Close(context.Background()); err != nil {
		t.Fatalf("Close mailer: %v", err)
	}
	return f.mail.templates()
}

func (f *fixture) user(t *testing.T, role models.Role, approved bool) *models.User {
	t.Helper()
	hash, err := f.svc.Auth.deps.Hasher.Hash(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	n := f.seq.Add(1)
	u := &models.User{
		Name:         fmt.Sprintf("%s %d", role, n),
		Email:        fmt.Sprintf("%s%d@merkato.et", role, n),
		Phone:        "+251911000000",
		PasswordHash: hash,
		Role:         role,
		IsApproved:   approved,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	switch role {
	case models.RoleSeller:
		u.Seller = &models.SellerProfile{BusinessName: fmt.Sprintf("Shop %d", n)}
	case models.RoleDeliveryAgent:
		u.Delivery = &models.DeliveryProfile{VehicleType: "motorcycle", Available: true}
	}
	if err := f.store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) product(t *testing.T, seller *models.User, price float64, stock int) *models.Product {
	t.Helper()
	n := f.seq.Add(1)
	p := &models.Product{
		Name:       fmt.Sprintf("Yirgacheffe %d", n),
		Price:      models.NewMoney(price),
		Stock:      stock,
		Category:   models.CategoryCoffee,
		Region:     models.RegionAddisAbaba,
		SellerID:   seller.ID,
		SellerName: seller.DisplayName(),
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := f.store.Products.Create(context.Background(), p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func (f *fixture) stock(t *testing.T, p *models.Product) int {
	t.Helper()
	got, err := f.store.Products.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got.Stock
}

func addisAddress() AddressInput {
	return AddressInput{Street: "Bole Road", City: "Addis Ababa", Region: string(models.RegionAddisAbaba)}
}

// placeOrder places a one-line order and fails the test on error.
func (f *fixture) placeOrder(t *testing.T, customer *models.User, p *models.Product, qty int) *models.Order {
	t.Helper()
	res, err := f.svc.Orders.Place(context.Background(), customer, PlaceOrderInput{
		Items:           []OrderItemInput{{ProductID: p.ID.Hex(), Quantity: qty}},
		ShippingAddress: addisAddress(),
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	return res.Order
}

// advance moves an order through statuses as actor.
func (f *fixture) advance(t *testing.T, actor *models.User, o *models.Order, statuses ...models.OrderStatus) *models.Order {
	t.Helper()
	for _, st := range statuses {
		var err error
		o, err = f.svc.Orders.UpdateStatus(context.Background(), actor, o.ID, StatusInput{Status: string(st)})
		if err != nil {
			t.Fatalf("UpdateStatus(%s): %v", st, err)
		}
	}
	return o
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}
