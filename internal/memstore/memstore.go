// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

// Package memstore implements the store repositories on process-local maps.
//
// A single RWMutex guards all collections so that multi-collection reads
// (hidden sellers, listings) see a consistent snapshot. Values are copied on
// the way in and out; callers never share memory with the store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

// DB holds every collection.
type DB struct {
	mu sync.RWMutex

	users         map[primitive.ObjectID]models.User
	products      map[primitive.ObjectID]models.Product
	orders        map[primitive.ObjectID]models.Order
	carts         map[primitive.ObjectID]models.Cart
	wishlists     map[primitive.ObjectID]models.Wishlist
	reviews       map[primitive.ObjectID]models.Review
	notifications map[primitive.ObjectID]models.Notification
}

// New returns an empty database.
func New() *DB {
	return &DB{
		users:         make(map[primitive.ObjectID]models.User),
		products:      make(map[primitive.ObjectID]models.Product),
		orders:        make(map[primitive.ObjectID]models.Order),
		carts:         make(map[primitive.ObjectID]models.Cart),
		wishlists:     make(map[primitive.ObjectID]models.Wishlist),
		reviews:       make(map[primitive.ObjectID]models.Review),
		notifications: make(map[primitive.ObjectID]models.Notification),
	}
}

// NewStore returns a store.Store backed by a fresh DB.
func NewStore() *store.Store {
	return New().Store()
}

// Store exposes db through the repository interfaces.
func (db *DB) Store() *store.Store {
	return &store.Store{
		Users:         &userRepo{db},
		Products:      &productRepo{db},
		Orders:        &orderRepo{db},
		Carts:         &cartRepo{db},
		Wishlists:     &wishlistRepo{db},
		Reviews:       &reviewRepo{db},
		Notifications: &notificationRepo{db},
		Ping:          func(context.Context) error { return nil },
		Close:         func(context.Context) error { return nil },
	}
}

// Reset drops every document. The seed tool uses it with --reset.
func (db *DB) Reset() {
	fresh := New()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = fresh.users
	db.products = fresh.products
	db.orders = fresh.orders
	db.carts = fresh.carts
	db.wishlists = fresh.wishlists
	db.reviews = fresh.reviews
	db.notifications = fresh.notifications
}

func ensureID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func page[T any](items []T, p store.Page) []T {
	start, end := p.Window(len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

// ========================================
// Users
// ========================================

type userRepo struct{ db *DB }

func (r *userRepo) Create(_ context.Context, u *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, existing := range r.db.users {
		if existing.Email == email {
			return store.ErrDuplicate
		}
	}
	ensureID(&u.ID)
	u.Email = email
	r.db.users[u.ID] = cloneUser(*u)
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.db.users {
		if u.Email == email {
			out := cloneUser(u)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *userRepo) Update(_ context.Context, u *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	r.db.users[u.ID] = cloneUser(*u)
	return nil
}

func (r *userRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.users, id)
	return nil
}

func (r *userRepo) matching(f store.UserFilter) []models.User {
	out := []models.User{}
	for _, u := range r.db.users {
		if f.Matches(&u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *userRepo) List(_ context.Context, f store.UserFilter) ([]models.User, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	all := r.matching(f)
	return page(all, f.Page), int64(len(all)), nil
}

func (r *userRepo) Count(_ context.Context, f store.UserFilter) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.matching(f))), nil
}

func (r *userRepo) TouchLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.LastLoginAt = &at
	r.db.users[id] = u
	return nil
}

func (r *userRepo) SetRating(_ context.Context, id primitive.ObjectID, rating models.Rating) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Rating = rating
	r.db.users[id] = u
	return nil
}

func (r *userRepo) HiddenSellerIDs(_ context.Context) ([]primitive.ObjectID, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	ids := []primitive.ObjectID{}
	for id, u := range r.db.users {
		if u.Role == models.RoleSeller && !(u.IsApproved && u.IsActive) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func cloneUser(u models.User) models.User {
	if u.Address != nil {
		a := *u.Address
		u.Address = &a
	}
	if u.Seller != nil {
		s := *u.Seller
		u.Seller = &s
	}
	if u.Delivery != nil {
		d := *u.Delivery
		u.Delivery = &d
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return u
}

// ========================================
// Products
// ========================================

type productRepo struct{ db *DB }

func (r *productRepo) Create(_ context.Context, p *models.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ensureID(&p.ID)
	r.db.products[p.ID] = cloneProduct(*p)
	return nil
}

func (r *productRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneProduct(p)
	return &out, nil
}

func (r *productRepo) Update(_ context.Context, id primitive.ObjectID, c store.ProductChanges) (*models.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Apply(&p)
	r.db.products[id] = cloneProduct(p)
	out := cloneProduct(p)
	return &out, nil
}

func (r *productRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.products, id)
	return nil
}

func (r *productRepo) matching(f store.ProductFilter) []models.Product {
	out := []models.Product{}
	for _, p := range r.db.products {
		if f.Matches(&p) {
			out = append(out, cloneProduct(p))
		}
	}
	sortProducts(out, f.Sort)
	return out
}

func sortProducts(ps []models.Product, by store.ProductSort) {
	less := func(i, j int) bool { return ps[i].CreatedAt.After(ps[j].CreatedAt) }
	switch by {
	case store.SortPriceAsc:
		less = func(i, j int) bool { return ps[i].Price.LessThan(ps[j].Price) }
	case store.SortPriceDesc:
		less = func(i, j int) bool { return ps[i].Price.GreaterThan(ps[j].Price) }
	case store.SortRating:
		less = func(i, j int) bool { return ps[i].Rating.Average > ps[j].Rating.Average }
	case store.SortPopular:
		less = func(i, j int) bool { return ps[i].SoldCount > ps[j].SoldCount }
	}
	sort.SliceStable(ps, less)
}

func (r *productRepo) List(_ context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	all := r.matching(f)
	return page(all, f.Page), int64(len(all)), nil
}

func (r *productRepo) Count(_ context.Context, f store.ProductFilter) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.matching(f))), nil
}

func (r *productRepo) CategoryCounts(_ context.Context, f store.ProductFilter) ([]models.CategoryCount, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	counts := map[models.Category]int{}
	for _, p := range r.matching(f) {
		counts[p.Category]++
	}
	out := make([]models.CategoryCount, 0, len(models.Categories))
	for _, c := range models.Categories {
		out = append(out, models.CategoryCount{Category: c, Count: counts[c]})
	}
	return out, nil
}

func (r *productRepo) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) (*models.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if qty <= 0 || p.Stock < qty {
		return nil, store.ErrInsufficientStock
	}
	p.Stock -= qty
	p.SoldCount += qty
	p.UpdatedAt = time.Now().UTC()
	r.db.products[id] = p
	out := cloneProduct(p)
	return &out, nil
}

func (r *productRepo) IncrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Stock += qty
	p.SoldCount -= qty
	if p.SoldCount < 0 {
		p.SoldCount = 0
	}
	p.UpdatedAt = time.Now().UTC()
	r.db.products[id] = p
	return nil
}

func (r *productRepo) SetRating(_ context.Context, id primitive.ObjectID, rating models.Rating) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Rating = rating
	r.db.products[id] = p
	return nil
}

func cloneProduct(p models.Product) models.Product {
	p.Images = append([]string(nil), p.Images...)
	p.Tags = append([]string(nil), p.Tags...)
	if p.CompareAtPrice != nil {
		c := *p.CompareAtPrice
		p.CompareAtPrice = &c
	}
	return p
}
