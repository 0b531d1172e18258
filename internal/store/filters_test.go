// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package store

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
)

func TestNewPage(t *testing.T) {
	tests := []struct {
		page, limit       int
		wantPage, wantLim int
	}{
		{0, 0, 1, DefaultPageSize},
		{-3, 10, 1, 10},
		{2, 500, 2, MaxPageSize},
		{4, 25, 4, 25},
	}
	for _, tt := range tests {
		p := NewPage(tt.page, tt.limit)
		if p.Page != tt.wantPage || p.Limit != tt.wantLim {
			t.Errorf("NewPage(%d, %d) = %+v", tt.page, tt.limit, p)
		}
	}
}

func TestPageWindow(t *testing.T) {
	p := Page{Page: 2, Limit: 10}
	if p.Skip() != 10 {
		t.Errorf("Skip = %d", p.Skip())
	}
	if s, e := p.Window(25); s != 10 || e != 20 {
		t.Errorf("Window(25) = %d,%d", s, e)
	}
	if s, e := p.Window(15); s != 10 || e != 15 {
		t.Errorf("Window(15) = %d,%d", s, e)
	}
	if s, e := p.Window(5); s != 5 || e != 5 {
		t.Errorf("Window(5) = %d,%d", s, e)
	}
	if s, e := (Page{}).Window(7); s != 0 || e != 7 {
		t.Errorf("unlimited Window = %d,%d", s, e)
	}
	if p.Pages(21) != 3 || p.Pages(0) != 1 {
		t.Errorf("Pages wrong: %d %d", p.Pages(21), p.Pages(0))
	}
}

func TestProductFilterMatches(t *testing.T) {
	seller := primitive.NewObjectID()
	hidden := primitive.NewObjectID()
	p := &models.Product{
		Name:     "Sidamo Coffee",
		Tags:     []string{"Organic"},
		Price:    models.NewMoney(300),
		Stock:    4,
		Category: models.CategoryCoffee,
		Region:   models.RegionSidama,
		SellerID: seller,
		IsActive: true,
	}
	minPrice, maxPrice := models.NewMoney(100), models.NewMoney(250)
	yes := true

	tests := []struct {
		name string
		f    ProductFilter
		want bool
	}{
		{"empty filter", ProductFilter{}, true},
		{"category", ProductFilter{Category: models.CategorySpices}, false},
		{"region", ProductFilter{Region: models.RegionSidama}, true},
		{"search tag case-insensitive", ProductFilter{Search: "organic"}, true},
		{"search miss", ProductFilter{Search: "teff"}, false},
		{"min price", ProductFilter{MinPrice: &minPrice}, true},
		{"max price", ProductFilter{MaxPrice: &maxPrice}, false},
		{"featured", ProductFilter{Featured: &yes}, false},
		{"hidden seller", ProductFilter{ExcludeSellers: []primitive.ObjectID{hidden, seller}}, false},
		{"seller", ProductFilter{SellerID: &seller}, true},
		{"low stock", ProductFilter{LowStock: 5}, true},
		{"low stock above", ProductFilter{LowStock: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Matches(p); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}

	p.IsActive = false
	if (ProductFilter{}).Matches(p) {
		t.Error("inactive product must be hidden by default")
	}
	if !(ProductFilter{IncludeInactive: true}).Matches(p) {
		t.Error("IncludeInactive should list it")
	}
}

func TestOrderFilterMatches(t *testing.T) {
	customer, seller, agent := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	o := &models.Order{
		CustomerID: customer,
		Items:      []models.OrderItem{{SellerID: seller, Quantity: 1}},
		Status:     models.StatusReadyForPickup,
	}
	if !(OrderFilter{SellerID: &seller, Unassigned: true}).Matches(o) {
		t.Error("seller filter should match unassigned order")
	}
	if (OrderFilter{AgentID: &agent}).Matches(o) {
		t.Error("unassigned order matched agent filter")
	}
	o.DeliveryAgentID = &agent
	if !(OrderFilter{AgentID: &agent, Statuses: []models.OrderStatus{models.StatusReadyForPickup}}).Matches(o) {
		t.Error("agent + status should match")
	}
	if (OrderFilter{Statuses: []models.OrderStatus{models.StatusDelivered}}).Matches(o) {
		t.Error("status filter ignored")
	}
	if (OrderFilter{CustomerID: &seller}).Matches(o) {
		t.Error("customer filter ignored")
	}
}

func TestParseProductSort(t *testing.T) {
	if ParseProductSort("price_desc") != SortPriceDesc || ParseProductSort("bogus") != SortNewest {
		t.Error("ParseProductSort wrong")
	}
}
