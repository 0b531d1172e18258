// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/store"
	"github.com/tomtom215/merkato/internal/validation"
)

const defaultFeaturedLimit = 8

// ProductInput is the body of POST /products.
type ProductInput struct {
	Name           string        `json:"name" validate:"required,min=2,max=200"`
	Description    string        `json:"description" validate:"required,max=5000"`
	Price          models.Money  `json:"price"`
	CompareAtPrice *models.Money `json:"compareAtPrice"`
	Stock          int           `json:"stock" validate:"gte=0,lte=1000000"`
	Category       string        `json:"category" validate:"required,category"`
	Region         string        `json:"region" validate:"omitempty,region"`
	Images         []string      `json:"images" validate:"max=10,dive,url"`
	Tags           []string      `json:"tags" validate:"max=20,dive,min=1,max=50"`
	Unit           string        `json:"unit" validate:"max=30"`
	IsActive       *bool         `json:"isActive"`
	IsFeatured     *bool         `json:"isFeatured"`
}

// ProductPatch is the body of PUT /products/{id}. Nil fields are left
// unchanged.
type ProductPatch struct {
	Name           *string       `json:"name" validate:"omitempty,min=2,max=200"`
	Description    *string       `json:"description" validate:"omitempty,max=5000"`
	Price          *models.Money `json:"price"`
	CompareAtPrice *models.Money `json:"compareAtPrice"`
	Stock          *int          `json:"stock" validate:"omitempty,gte=0,lte=1000000"`
	Category       *string       `json:"category" validate:"omitempty,category"`
	Region         *string       `json:"region" validate:"omitempty,region"`
	Images         []string      `json:"images" validate:"omitempty,max=10,dive,url"`
	Tags           []string      `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
	Unit           *string       `json:"unit" validate:"omitempty,max=30"`
	IsActive       *bool         `json:"isActive"`
	IsFeatured     *bool         `json:"isFeatured"`
}

// ReviewInput is the body of POST /products/{id}/reviews.
type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// CatalogService manages products and reviews.
type CatalogService struct {
	*base
}

// List returns the public catalog: active products of approved, active
// sellers.
func (s *CatalogService) List(ctx context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	f.IncludeInactive = false
	if err := s.hideSellers(ctx, &f); err != nil {
		return nil, 0, err
	}
	return s.store().Products.List(ctx, f)
}

// Featured returns up to limit featured, in-stock products.
func (s *CatalogService) Featured(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 || limit > store.MaxPageSize {
		limit = defaultFeaturedLimit
	}
	items, _, err := s.List(ctx, store.ProductFilter{
		Featured: boolPtr(true),
		InStock:  true,
		Sort:     store.SortRating,
		Page:     store.NewPage(1, limit),
	})
	return items, err
}

// Categories counts visible products per category.
func (s *CatalogService) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	f := store.ProductFilter{}
	if err := s.hideSellers(ctx, &f); err != nil {
		return nil, err
	}
	return s.store().Products.CategoryCounts(ctx, f)
}

func (s *CatalogService) hideSellers(ctx context.Context, f *store.ProductFilter) error {
	hidden, err := s.store().Users.HiddenSellerIDs(ctx)
	if err != nil {
		return fmt.Errorf("load hidden sellers: %w", err)
	}
	f.ExcludeSellers = append(f.ExcludeSellers, hidden...)
	return nil
}

// Get returns one product. Inactive products and products of hidden
// sellers are only visible to their owner and to admins.
func (s *CatalogService) Get(ctx context.Context, id primitive.ObjectID, viewer *models.User) (*models.Product, error) {
	p, err := s.product(ctx, id)
	if err != nil {
		return nil, err
	}
	if canManage(viewer, p) {
		return p, nil
	}
	if !p.IsActive {
		return nil, notFound("Product not found")
	}
	seller, err := s.store().Users.GetByID(ctx, p.SellerID)
	if err != nil || !seller.CanSell() {
		return nil, notFound("Product not found")
	}
	return p, nil
}

// Mine lists the seller's own products including inactive ones.
func (s *CatalogService) Mine(ctx context.Context, seller *models.User, f store.ProductFilter) ([]models.Product, int64, error) {
	id := seller.ID
	f.SellerID = &id
	f.IncludeInactive = true
	f.ExcludeSellers = nil
	return s.store().Products.List(ctx, f)
}

// Create lists a new product for an approved seller.
func (s *CatalogService) Create(ctx context.Context, seller *models.User, in ProductInput) (*models.Product, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if err := checkPrice(in.Price, in.CompareAtPrice); err != nil {
		return nil, err
	}
	if seller.Role == models.RoleSeller && !seller.IsApproved {
		return nil, newError(ErrNotApproved, "Your seller account is pending approval")
	}
	if in.IsFeatured != nil && *in.IsFeatured && seller.Role != models.RoleAdmin {
		return nil, forbidden("Only administrators can feature products")
	}

	now := s.now()
	p := &models.Product{
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		Price:          in.Price,
		CompareAtPrice: in.CompareAtPrice,
		Stock:          in.Stock,
		Category:       models.Category(in.Category),
		Region:         models.Region(in.Region),
		Images:         nonNil(in.Images),
		Tags:           normalizeTags(in.Tags),
		Unit:           strings.TrimSpace(in.Unit),
		SellerID:       seller.ID,
		SellerName:     seller.DisplayName(),
		IsActive:       in.IsActive == nil || *in.IsActive,
		IsFeatured:     in.IsFeatured != nil && *in.IsFeatured,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Region == "" && seller.Address != nil {
		p.Region = seller.Address.Region
	}
	if err := s.store().Products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Update applies a patch to a product owned by actor, or any product when
// actor is an admin.
func (s *CatalogService) Update(ctx context.Context, actor *models.User, id primitive.ObjectID, in ProductPatch) (*models.Product, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.IsFeatured != nil && actor.Role != models.RoleAdmin {
		return nil, forbidden("Only administrators can feature products")
	}

	c := store.ProductChanges{
		Price:          in.Price,
		CompareAtPrice: in.CompareAtPrice,
		Stock:          in.Stock,
		IsActive:       in.IsActive,
		IsFeatured:     in.IsFeatured,
		UpdatedAt:      s.now(),
	}
	price, compareAt := p.Price, p.CompareAtPrice
	if in.Price != nil {
		price = *in.Price
	}
	if in.CompareAtPrice != nil {
		compareAt = in.CompareAtPrice
	}
	if err := checkPrice(price, compareAt); err != nil {
		return nil, err
	}
	if in.Name != nil {
		c.Name = trimmed(*in.Name)
	}
	if in.Description != nil {
		c.Description = trimmed(*in.Description)
	}
	if in.Unit != nil {
		c.Unit = trimmed(*in.Unit)
	}
	if in.Category != nil {
		cat := models.Category(*in.Category)
		c.Category = &cat
	}
	if in.Region != nil {
		region := models.Region(*in.Region)
		c.Region = &region
	}
	if in.Images != nil {
		c.Images = in.Images
	}
	if in.Tags != nil {
		c.Tags = normalizeTags(in.Tags)
	}

	updated, err := s.store().Products.Update(ctx, id, c)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

func trimmed(v string) *string {
	v = strings.TrimSpace(v)
	return &v
}

// Delete removes a product owned by actor.
func (s *CatalogService) Delete(ctx context.Context, actor *models.User, id primitive.ObjectID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store().Products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// SetStock replaces the stock level and alerts the seller when it is low.
func (s *CatalogService) SetStock(ctx context.Context, actor *models.User, id primitive.ObjectID, stock int) (*models.Product, error) {
	if stock < 0 {
		return nil, validation.NewRequestError("stock", "stock must be greater than or equal to 0")
	}
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	p, err := s.store().Products.Update(ctx, id, store.ProductChanges{Stock: &stock, UpdatedAt: s.now()})
	if err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}
	s.checkLowStock(ctx, p)
	return p, nil
}

func (s *CatalogService) owned(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Product, error) {
	p, err := s.product(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, p) {
		return nil, forbidden("Not authorized to modify this product")
	}
	return p, nil
}

// Reviews lists a product's reviews, newest first.
func (s *CatalogService) Reviews(ctx context.Context, productID primitive.ObjectID, page store.Page) ([]models.Review, int64, error) {
	if _, err := s.product(ctx, productID); err != nil {
		return nil, 0, err
	}
	return s.store().Reviews.ListByProduct(ctx, productID, page)
}

// AddReview records a customer's review of a product they received and
// folds the score into the product and seller ratings.
func (s *CatalogService) AddReview(ctx context.Context, customer *models.User, productID primitive.ObjectID, in ReviewInput) (*models.Review, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	order, err := s.store().Orders.DeliveredOrderWith(ctx, customer.ID, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, forbidden("You can only review products from your delivered orders")
	}
	if err != nil {
		return nil, fmt.Errorf("find delivered order: %w", err)
	}

	r := &models.Review{
		ProductID:    p.ID,
		SellerID:     p.SellerID,
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		OrderID:      order.ID,
		Rating:       in.Rating,
		Comment:      strings.TrimSpace(in.Comment),
		CreatedAt:    s.now(),
	}
	if err := s.store().Reviews.Create(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(ErrDuplicate, "You have already reviewed this product")
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	if err := s.store().Products.SetRating(ctx, p.ID, p.Rating.Add(in.Rating)); err != nil {
		logWarn(ctx, err, "Failed to update product rating")
	}
	if seller, err := s.store().Users.GetByID(ctx, p.SellerID); err == nil {
		if err := s.store().Users.SetRating(ctx, seller.ID, seller.Rating.Add(in.Rating)); err != nil {
			logWarn(ctx, err, "Failed to update seller rating")
		}
	}
	s.deliver(ctx, &models.Notification{
		UserID:  p.SellerID,
		Type:    models.NotificationReviewReceived,
		Title:   "New review",
		Message: fmt.Sprintf("%s rated %s %d/5.", customer.Name, p.Name, in.Rating),
	})
	return r, nil
}

// checkLowStock alerts the seller when stock is at or below the configured
// threshold.
func (b *base) checkLowStock(ctx context.Context, p *models.Product) {
	threshold := b.deps.Config.Orders.LowStockThreshold
	if threshold <= 0 || p.Stock > threshold {
		return
	}
	seller, err := b.store().Users.GetByID(ctx, p.SellerID)
	if err != nil {
		logWarn(ctx, err, "Low stock alert skipped, seller not found")
		return
	}
	b.email(ctx, seller, notify.TemplateLowStockAlert, notify.LowStockData{
		ProductID:   p.ID.Hex(),
		ProductName: p.Name,
		Stock:       p.Stock,
		Threshold:   threshold,
	})
	b.deliver(ctx, &models.Notification{
		UserID:  seller.ID,
		Type:    models.NotificationLowStock,
		Title:   "Low stock",
		Message: fmt.Sprintf("%s has %d unit(s) left.", p.Name, p.Stock),
	})
}

func canManage(u *models.User, p *models.Product) bool {
	if u == nil {
		return false
	}
	return u.Role == models.RoleAdmin || (u.Role == models.RoleSeller && p.SellerID == u.ID)
}

func checkPrice(price models.Money, compareAt *models.Money) error {
	if !price.IsPositive() {
		return validation.NewRequestError("price", "price must be greater than 0")
	}
	if compareAt != nil && !compareAt.IsZero() && compareAt.LessThan(price) {
		return validation.NewRequestError("compareAtPrice", "compareAtPrice must not be lower than price")
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
