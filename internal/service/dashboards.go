// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"fmt"

	"github.com/tomtom215/merkato/internal/analytics"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

const (
	dashboardTopN      = 5
	recentOrdersLimit  = 5
	defaultWindowDays  = 30
	maxDashboardWindow = 365
)

// SalesReport is the DuckDB half of a dashboard. It is nil when analytics
// are disabled.
type SalesReport struct {
	Sales        *analytics.Sales         `json:"sales"`
	RevenueByDay []analytics.DayPoint     `json:"revenueByDay"`
	TopProducts  []analytics.ProductSales `json:"topProducts"`
	ByCategory   []analytics.Breakdown    `json:"byCategory"`

	// Marketplace-wide reports, admin only.
	TopSellers []analytics.SellerSales `json:"topSellers,omitempty"`
	ByRegion   []analytics.Breakdown   `json:"byRegion,omitempty"`
	Signups    map[models.Role]int64   `json:"signups,omitempty"`
}

// AdminDashboard summarises the whole marketplace.
type AdminDashboard struct {
	WindowDays       int                          `json:"windowDays"`
	Users            map[models.Role]int64        `json:"users"`
	PendingApprovals int64                        `json:"pendingApprovals"`
	Products         int64                        `json:"products"`
	ActiveProducts   int64                        `json:"activeProducts"`
	Orders           map[models.OrderStatus]int64 `json:"orders"`
	Report           *SalesReport                 `json:"report,omitempty"`
}

// SellerDashboard summarises one seller's shop.
type SellerDashboard struct {
	WindowDays     int                          `json:"windowDays"`
	Products       int64                        `json:"products"`
	ActiveProducts int64                        `json:"activeProducts"`
	LowStock       []models.Product             `json:"lowStock"`
	Orders         map[models.OrderStatus]int64 `json:"orders"`
	RecentOrders   []models.Order               `json:"recentOrders"`
	Report         *SalesReport                 `json:"report,omitempty"`
}

// DeliveryDashboard summarises an agent's work.
type DeliveryDashboard struct {
	Stats      *DeliveryStats `json:"stats"`
	Active     []models.Order `json:"active"`
	Unassigned int64          `json:"unassignedReady"`
}

// CustomerSummary summarises a customer's orders.
type CustomerSummary struct {
	Orders       map[models.OrderStatus]int64 `json:"orders"`
	TotalOrders  int64                        `json:"totalOrders"`
	TotalSpent   models.Money                 `json:"totalSpent"`
	RecentOrders []models.Order               `json:"recentOrders"`
	Unread       int64                        `json:"unreadNotifications"`
}

// DashboardService builds the per-role dashboards. Counts come from the
// document store; sales figures come from the analytics store.
type DashboardService struct {
	*base
	delivery *DeliveryService
}

// windowDays clamps the requested window, falling back to the configured
// default.
func (s *DashboardService) windowDays(days int) int {
	if days <= 0 {
		days = s.deps.Config.Analytics.DashboardDays
	}
	if days <= 0 {
		days = defaultWindowDays
	}
	if days > maxDashboardWindow {
		days = maxDashboardWindow
	}
	return days
}

// Admin returns marketplace totals for the last days days.
func (s *DashboardService) Admin(ctx context.Context, days int) (*AdminDashboard, error) {
	days = s.windowDays(days)
	users := s.store().Users
	d := &AdminDashboard{WindowDays: days, Users: make(map[models.Role]int64)}

	for _, role := range models.Roles {
		n, err := users.Count(ctx, store.UserFilter{Role: role})
		if err != nil {
			return nil, fmt.Errorf("count %s users: %w", role, err)
		}
		d.Users[role] = n
	}
	for _, role := range []models.Role{models.RoleSeller, models.RoleDeliveryAgent} {
		n, err := users.Count(ctx, store.UserFilter{Role: role, IsApproved: boolPtr(false)})
		if err != nil {
			return nil, fmt.Errorf("count pending approvals: %w", err)
		}
		d.PendingApprovals += n
	}

	var err error
	if d.Products, err = s.store().Products.Count(ctx, store.ProductFilter{IncludeInactive: true}); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if d.ActiveProducts, err = s.store().Products.Count(ctx, store.ProductFilter{}); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if d.Orders, err = s.store().Orders.CountByStatus(ctx, store.OrderFilter{}); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	d.Report = s.report(ctx, "", days, true)
	return d, nil
}

// Seller returns the seller's shop summary.
func (s *DashboardService) Seller(ctx context.Context, seller *models.User, days int) (*SellerDashboard, error) {
	days = s.windowDays(days)
	id := seller.ID
	d := &SellerDashboard{WindowDays: days}

	var err error
	if d.Products, err = s.store().Products.Count(ctx, store.ProductFilter{SellerID: &id, IncludeInactive: true}); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if d.ActiveProducts, err = s.store().Products.Count(ctx, store.ProductFilter{SellerID: &id}); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	threshold := s.deps.Config.Orders.LowStockThreshold
	if threshold > 0 {
		d.LowStock, _, err = s.store().Products.List(ctx, store.ProductFilter{
			SellerID:        &id,
			IncludeInactive: true,
			LowStock:        threshold,
			Page:            store.Page{Page: 1, Limit: store.MaxPageSize},
		})
		if err != nil {
			return nil, fmt.Errorf("list low stock: %w", err)
		}
	}
	if d.LowStock == nil {
		d.LowStock = []models.Product{}
	}

	filter := store.OrderFilter{SellerID: &id}
	if d.Orders, err = s.store().Orders.CountByStatus(ctx, filter); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	filter.Page = store.Page{Page: 1, Limit: recentOrdersLimit}
	if d.RecentOrders, _, err = s.store().Orders.List(ctx, filter); err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}

	d.Report = s.report(ctx, id.Hex(), days, false)
	return d, nil
}

// Delivery returns the agent's workload.
func (s *DashboardService) Delivery(ctx context.Context, agent *models.User) (*DeliveryDashboard, error) {
	delivery := s.delivery
	stats, err := delivery.Stats(ctx, agent)
	if err != nil {
		return nil, err
	}
	active, _, err := delivery.Assigned(ctx, agent, activeDeliveryStatuses, store.Page{Page: 1, Limit: store.MaxPageSize})
	if err != nil {
		return nil, fmt.Errorf("list active deliveries: %w", err)
	}
	_, unassigned, err := delivery.Available(ctx, store.Page{Page: 1, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("count unassigned: %w", err)
	}
	return &DeliveryDashboard{Stats: stats, Active: active, Unassigned: unassigned}, nil
}

// Customer returns the customer's order summary. Spending excludes
// cancelled orders.
func (s *DashboardService) Customer(ctx context.Context, customer *models.User) (*CustomerSummary, error) {
	id := customer.ID
	filter := store.OrderFilter{CustomerID: &id}
	counts, err := s.store().Orders.CountByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	sum := &CustomerSummary{Orders: counts}
	for _, n := range counts {
		sum.TotalOrders += n
	}

	all, _, err := s.store().Orders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	for i := range all {
		if all[i].Status != models.StatusCancelled {
			sum.TotalSpent = sum.TotalSpent.Add(all[i].Total)
		}
	}
	if len(all) > recentOrdersLimit {
		all = all[:recentOrdersLimit]
	}
	sum.RecentOrders = all

	if sum.Unread, err = s.store().Notifications.UnreadCount(ctx, id); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	return sum, nil
}

// report gathers the analytics half of a dashboard. Query failures are
// logged and leave the affected section empty.
func (s *DashboardService) report(ctx context.Context, sellerID string, days int, marketplace bool) *SalesReport {
	a := s.deps.Analytics
	if a == nil {
		return nil
	}
	since := s.now().AddDate(0, 0, -days)
	scope := analytics.Scope{SellerID: sellerID, Since: since}
	r := &SalesReport{}

	var err error
	if r.Sales, err = a.Sales(ctx, scope); err != nil {
		logWarn(ctx, err, "Dashboard sales query failed")
	}
	if r.RevenueByDay, err = a.RevenueByDay(ctx, sellerID, days); err != nil {
		logWarn(ctx, err, "Dashboard revenue query failed")
	}
	if r.TopProducts, err = a.TopProducts(ctx, scope, dashboardTopN); err != nil {
		logWarn(ctx, err, "Dashboard top products query failed")
	}
	if r.ByCategory, err = a.SalesByCategory(ctx, scope); err != nil {
		logWarn(ctx, err, "Dashboard category query failed")
	}
	if !marketplace {
		return r
	}
	if r.TopSellers, err = a.TopSellers(ctx, since, dashboardTopN); err != nil {
		logWarn(ctx, err, "Dashboard top sellers query failed")
	}
	if r.ByRegion, err = a.SalesByRegion(ctx, since); err != nil {
		logWarn(ctx, err, "Dashboard region query failed")
	}
	if r.Signups, err = a.SignupsByRole(ctx, since); err != nil {
		logWarn(ctx, err, "Dashboard signups query failed")
	}
	return r
}
