// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package store

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
)

// Pagination defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of results. Page is 1-based. A zero Limit means
// no limit, which only internal callers use.
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps client-supplied values.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return Page{Page: page, Limit: limit}
}

// Skip is the number of results before this page.
func (p Page) Skip() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Pages returns the page count for total results.
func (p Page) Pages(total int64) int {
	if p.Limit < 1 || total == 0 {
		return 1
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// Window applies the page to n results and returns the [start, end) slice
// bounds. In-memory repositories use it.
func (p Page) Window(n int) (start, end int) {
	start = p.Skip()
	if start > n {
		start = n
	}
	end = n
	if p.Limit > 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}

// UserFilter narrows user listings. Nil pointers mean "any".
type UserFilter struct {
	Role       models.Role
	IsApproved *bool
	IsActive   *bool
	Available  *bool
	Search     string
	Page       Page
}

// Matches applies the filter to a single user.
func (f UserFilter) Matches(u *models.User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.IsApproved != nil && u.IsApproved != *f.IsApproved {
		return false
	}
	if f.IsActive != nil && u.IsActive != *f.IsActive {
		return false
	}
	if f.Available != nil {
		if u.Delivery == nil || u.Delivery.Available != *f.Available {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.Name), q) &&
			!strings.Contains(strings.ToLower(u.Email), q) &&
			!strings.Contains(u.Phone, q) {
			return false
		}
	}
	return true
}

// ProductSort is the ordering of a product listing.
type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
	SortRating    ProductSort = "rating"
	SortPopular   ProductSort = "popular"
)

// ParseProductSort falls back to newest for unknown values.
func ParseProductSort(s string) ProductSort {
	switch ProductSort(s) {
	case SortPriceAsc, SortPriceDesc, SortRating, SortPopular:
		return ProductSort(s)
	}
	return SortNewest
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category models.Category
	Region   models.Region
	SellerID *primitive.ObjectID
	Search   string
	MinPrice *models.Money
	MaxPrice *models.Money
	Featured *bool
	InStock  bool

	// IncludeInactive lists deactivated products too (admin and owner views).
	IncludeInactive bool

	// ExcludeSellers hides products of sellers that are unapproved or
	// deactivated.
	ExcludeSellers []primitive.ObjectID

	// LowStock selects products with stock at or below this value when > 0.
	LowStock int

	Sort ProductSort
	Page Page
}

// Matches applies the filter to a single product.
func (f ProductFilter) Matches(p *models.Product) bool {
	if !f.IncludeInactive && !p.IsActive {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Region != "" && p.Region != f.Region {
		return false
	}
	if f.SellerID != nil && p.SellerID != *f.SellerID {
		return false
	}
	for _, hidden := range f.ExcludeSellers {
		if p.SellerID == hidden {
			return false
		}
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.Featured != nil && p.IsFeatured != *f.Featured {
		return false
	}
	if f.InStock && p.Stock <= 0 {
		return false
	}
	if f.LowStock > 0 && p.Stock > f.LowStock {
		return false
	}
	if f.Search != "" && !productMatchesSearch(p, f.Search) {
		return false
	}
	return true
}

func productMatchesSearch(p *models.Product, search string) bool {
	q := strings.ToLower(search)
	if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// OrderFilter narrows order listings. At most one of CustomerID, SellerID
// and AgentID is normally set; the service picks it from the caller's role.
type OrderFilter struct {
	CustomerID *primitive.ObjectID
	SellerID   *primitive.ObjectID
	AgentID    *primitive.ObjectID
	Statuses   []models.OrderStatus
	Unassigned bool
	Page       Page
}

// Matches applies the filter to a single order.
func (f OrderFilter) Matches(o *models.Order) bool {
	if f.CustomerID != nil && o.CustomerID != *f.CustomerID {
		return false
	}
	if f.SellerID != nil && !o.HasSeller(*f.SellerID) {
		return false
	}
	if f.AgentID != nil && !o.IsAssignedTo(*f.AgentID) {
		return false
	}
	if f.Unassigned && o.DeliveryAgentID != nil {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
