// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package analytics

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/events"
	"github.com/tomtom215/merkato/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(&config.AnalyticsConfig{Path: ":memory:", Threads: 1})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewStore(db)
	if err := s.CreateTables(context.Background()); err != nil {
		t.Fatalf("CreateTables failed: %v", err)
	}
	return s
}

func orderEvent(id, seller string, created time.Time, items ...events.OrderItemFact) events.OrderCreated {
	ev := events.OrderCreated{
		OrderID:       id,
		OrderNumber:   "MRK-" + id,
		CustomerID:    "cust-1",
		PaymentMethod: string(models.PaymentCashOnDelivery),
		City:          "Addis Ababa",
		Region:        "addis_ababa",
		DeliveryFee:   models.NewMoney(0),
		VAT:           models.NewMoney(0),
		CreatedAt:     created,
	}
	subtotal := models.NewMoney(0)
	for _, it := range items {
		if it.SellerID == "" {
			it.SellerID = seller
		}
		it.LineTotal = it.Price.Times(it.Quantity)
		subtotal = subtotal.Add(it.LineTotal)
		ev.Items = append(ev.Items, it)
	}
	ev.Subtotal = subtotal
	ev.Total = subtotal
	return ev
}

func item(product, category string, qty int, price float64) events.OrderItemFact {
	return events.OrderItemFact{
		ProductID: product,
		Name:      product + " name",
		Category:  category,
		Quantity:  qty,
		Price:     models.NewMoney(price),
	}
}

// seed loads three orders: o1 and o2 are live, o3 is cancelled.
func seed(t *testing.T, s *Store) time.Time {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	fixtures := []events.OrderCreated{
		orderEvent("o1", "seller-a", now.Add(-time.Hour),
			item("coffee-1", "coffee", 2, 450),
			item("scarf-1", "textiles", 1, 1200)),
		orderEvent("o2", "seller-b", now.AddDate(0, 0, -2),
			item("berbere-1", "spices", 3, 150)),
		orderEvent("o3", "seller-a", now.Add(-2*time.Hour),
			item("coffee-1", "coffee", 5, 450)),
	}
	for _, ev := range fixtures {
		if err := s.IngestOrder(ctx, ev); err != nil {
			t.Fatalf("IngestOrder %s: %v", ev.OrderID, err)
		}
	}
	if err := s.IngestStatusChange(ctx, events.OrderStatusChanged{
		OrderID: "o3", From: models.StatusPending, To: models.StatusCancelled,
		ActorID: "cust-1", ActorRole: models.RoleCustomer, At: now,
	}); err != nil {
		t.Fatalf("IngestStatusChange: %v", err)
	}
	return now
}

// =============================================================================
// Ingestion
// =============================================================================

func TestIngestOrder_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	ev := orderEvent("o1", "seller-a", time.Now(), item("coffee-1", "coffee", 2, 450))

	for i := 0; i < 2; i++ {
		if err := s.IngestOrder(ctx, ev); err != nil {
			t.Fatalf("IngestOrder attempt %d: %v", i, err)
		}
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	var lines int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM order_items_fact`).Scan(&lines); err != nil {
		t.Fatal(err)
	}
	if lines != 1 {
		t.Errorf("item facts = %d, want 1", lines)
	}
}

func TestIngest_Validation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.IngestOrder(ctx, events.OrderCreated{}); err == nil {
		t.Error("expected error for order without id")
	}
	if err := s.IngestStatusChange(ctx, events.OrderStatusChanged{OrderID: "x"}); err == nil {
		t.Error("expected error for status change without status")
	}
	if err := s.IngestSignup(ctx, events.UserRegistered{}); err == nil {
		t.Error("expected error for signup without user")
	}
}

func TestIngestStatusChange_Delivered(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	created := time.Now().Add(-3 * time.Hour)

	if err := s.IngestOrder(ctx, orderEvent("o1", "seller-a", created, item("p", "coffee", 1, 100))); err != nil {
		t.Fatal(err)
	}
	if err := s.IngestStatusChange(ctx, events.OrderStatusChanged{
		OrderID: "o1", From: models.StatusInTransit, To: models.StatusDelivered,
		DeliveryAgentID: "agent-1", At: created.Add(2 * time.Hour),
	}); err != nil {
		t.Fatalf("IngestStatusChange: %v", err)
	}

	var status, agent string
	if err := s.DB().QueryRow(`SELECT status, agent_id FROM orders_fact WHERE order_id = 'o1'`).Scan(&status, &agent); err != nil {
		t.Fatal(err)
	}
	if status != "delivered" || agent != "agent-1" {
		t.Errorf("status = %s, agent = %s", status, agent)
	}

	avg, err := s.AverageDeliveryTime(ctx, "agent-1", time.Time{})
	if err != nil {
		t.Fatalf("AverageDeliveryTime: %v", err)
	}
	if avg != 2*time.Hour {
		t.Errorf("average delivery = %v, want 2h", avg)
	}
}

func TestIngest_StatusBeforeOrder(t *testing.T) {
	created := time.Now().UTC().Add(-3 * time.Hour)

	tests := []struct {
		name      string
		changes   []events.OrderStatusChanged
		wantState models.OrderStatus
		wantAgent string
		revenue   string
		cancelled int64
	}{
		{
			name: "cancelled",
			changes: []events.OrderStatusChanged{{
				OrderID: "o1", From: models.StatusPending, To: models.StatusCancelled,
				ActorID: "cust-1", ActorRole: models.RoleCustomer, At: created.Add(time.Minute),
			}},
			wantState: models.StatusCancelled,
			revenue:   "0.00",
			cancelled: 1,
		},
		{
			name: "delivered out of order",
			changes: []events.OrderStatusChanged{
				{
					OrderID: "o1", From: models.StatusInTransit, To: models.StatusDelivered,
					DeliveryAgentID: "agent-1", At: created.Add(2 * time.Hour),
				},
				{
					OrderID: "o1", From: models.StatusPending, To: models.StatusAccepted,
					At: created.Add(time.Hour),
				},
			},
			wantState: models.StatusDelivered,
			wantAgent: "agent-1",
			revenue:   "500.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStore(t)
			ctx := context.Background()

			for _, ch := range tt.changes {
				if err := s.IngestStatusChange(ctx, ch); err != nil {
					t.Fatalf("IngestStatusChange: %v", err)
				}
			}
			if err := s.IngestOrder(ctx, orderEvent("o1", "seller-a", created, item("p", "coffee", 1, 500))); err != nil {
				t.Fatalf("IngestOrder: %v", err)
			}

			var status string
			var agent *string
			if err := s.DB().QueryRow(`SELECT status, agent_id FROM orders_fact WHERE order_id = 'o1'`).Scan(&status, &agent); err != nil {
				t.Fatal(err)
			}
			if status != string(tt.wantState) {
				t.Errorf("status = %s, want %s", status, tt.wantState)
			}
			if tt.wantAgent != "" && (agent == nil || *agent != tt.wantAgent) {
				t.Errorf("agent = %v, want %s", agent, tt.wantAgent)
			}

			sales, err := s.Sales(ctx, Scope{})
			if err != nil {
				t.Fatalf("Sales: %v", err)
			}
			if sales.Revenue.String() != tt.revenue || sales.CancelledOrders != tt.cancelled {
				t.Errorf("revenue = %s cancelled = %d, want %s %d",
					sales.Revenue, sales.CancelledOrders, tt.revenue, tt.cancelled)
			}
		})
	}
}

func TestIngestStatusChange_StaleRedelivery(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	created := time.Now().UTC().Add(-3 * time.Hour)

	if err := s.IngestOrder(ctx, orderEvent("o1", "seller-a", created, item("p", "coffee", 1, 100))); err != nil {
		t.Fatal(err)
	}
	accepted := events.OrderStatusChanged{
		OrderID: "o1", From: models.StatusPending, To: models.StatusAccepted, At: created.Add(time.Hour),
	}
	preparing := events.OrderStatusChanged{
		OrderID: "o1", From: models.StatusAccepted, To: models.StatusPreparing, At: created.Add(2 * time.Hour),
	}
	for _, ev := range []events.OrderStatusChanged{accepted, preparing, accepted} {
		if err := s.IngestStatusChange(ctx, ev); err != nil {
			t.Fatalf("IngestStatusChange: %v", err)
		}
	}

	var status string
	if err := s.DB().QueryRow(`SELECT status FROM orders_fact WHERE order_id = 'o1'`).Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != string(models.StatusPreparing) {
		t.Errorf("status = %s, want preparing", status)
	}
}

func TestBackfill(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	agent := primitive.NewObjectID()

	o := &models.Order{
		ID:              primitive.NewObjectID(),
		OrderNumber:     "MRK-20260101-ABC123",
		CustomerID:      primitive.NewObjectID(),
		Status:          models.StatusDispatched,
		DeliveryAgentID: &agent,
		Items: []models.OrderItem{{
			ProductID: primitive.NewObjectID(), SellerID: primitive.NewObjectID(),
			Name: "Yirgacheffe", Category: models.CategoryCoffee, Quantity: 1,
			Price: models.NewMoney(500), LineTotal: models.NewMoney(500),
		}},
		Total: models.NewMoney(500),
		TrackingUpdates: []models.TrackingUpdate{
			{Status: models.StatusPending, Timestamp: now.Add(-4 * time.Hour)},
			{Status: models.StatusAccepted, Timestamp: now.Add(-3 * time.Hour)},
			{Status: models.StatusPreparing, Timestamp: now.Add(-2 * time.Hour)},
			{Status: models.StatusReadyForPickup, Timestamp: now.Add(-90 * time.Minute)},
			{Status: models.StatusDispatched, Timestamp: now.Add(-time.Hour)},
		},
		CreatedAt: now.Add(-4 * time.Hour),
	}

	n, err := s.Backfill(ctx, []*models.Order{o})
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n != 1 {
		t.Errorf("Backfill = %d, want 1", n)
	}

	var history int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM order_status_events`).Scan(&history); err != nil {
		t.Fatal(err)
	}
	if history != 5 {
		t.Errorf("status events = %d, want 5", history)
	}
	byStatus, err := s.OrdersByStatus(ctx, Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if byStatus[models.StatusDispatched] != 1 {
		t.Errorf("dispatched = %d, want 1", byStatus[models.StatusDispatched])
	}
}

// =============================================================================
// Queries
// =============================================================================

func TestSales(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name      string
		scope     Scope
		revenue   string
		orders    int64
		cancelled int64
		units     int64
	}{
		{"marketplace", Scope{}, "2550.00", 2, 1, 6},
		{"seller a", Scope{SellerID: "seller-a"}, "2100.00", 1, 1, 3},
		{"seller b", Scope{SellerID: "seller-b"}, "450.00", 1, 0, 3},
		{"since yesterday", Scope{Since: time.Now().AddDate(0, 0, -1)}, "2100.00", 1, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Sales(ctx, tt.scope)
			if err != nil {
				t.Fatalf("Sales: %v", err)
			}
			if got.Revenue.String() != tt.revenue {
				t.Errorf("revenue = %s, want %s", got.Revenue, tt.revenue)
			}
			if got.Orders != tt.orders || got.CancelledOrders != tt.cancelled || got.Units != tt.units {
				t.Errorf("orders/cancelled/units = %d/%d/%d, want %d/%d/%d",
					got.Orders, got.CancelledOrders, got.Units, tt.orders, tt.cancelled, tt.units)
			}
		})
	}
}

func TestOrdersByStatus(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	got, err := s.OrdersByStatus(context.Background(), Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if got[models.StatusPending] != 2 || got[models.StatusCancelled] != 1 {
		t.Errorf("by status = %v", got)
	}
	if _, ok := got[models.StatusDelivered]; !ok {
		t.Error("expected every status to be present")
	}

	seller, err := s.OrdersByStatus(context.Background(), Scope{SellerID: "seller-b"})
	if err != nil {
		t.Fatal(err)
	}
	if seller[models.StatusPending] != 1 || seller[models.StatusCancelled] != 0 {
		t.Errorf("seller by status = %v", seller)
	}
}

func TestRevenueByDay(t *testing.T) {
	s := setupTestStore(t)
	now := seed(t, s)

	points, err := s.RevenueByDay(context.Background(), "", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 7 {
		t.Fatalf("len = %d, want 7", len(points))
	}

	last := points[len(points)-1]
	if last.Date != now.Format(time.DateOnly) {
		t.Errorf("last date = %s, want today", last.Date)
	}

	var total int64
	for _, p := range points {
		total += p.Orders
	}
	if total != 2 {
		t.Errorf("orders across window = %d, want 2", total)
	}
}

func TestTopProductsAndSellers(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)
	ctx := context.Background()

	products, err := s.TopProducts(ctx, Scope{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 {
		t.Fatalf("len = %d, want 2", len(products))
	}
	if products[0].ProductID != "scarf-1" || products[0].Revenue.String() != "1200.00" {
		t.Errorf("top product = %+v", products[0])
	}
	// The cancelled order's five bags are excluded.
	if products[1].ProductID != "coffee-1" || products[1].Units != 2 {
		t.Errorf("second product = %+v", products[1])
	}

	sellers, err := s.TopSellers(ctx, time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sellers) != 2 || sellers[0].SellerID != "seller-a" {
		t.Errorf("sellers = %+v", sellers)
	}
}

func TestBreakdowns(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)
	ctx := context.Background()

	cats, err := s.SalesByCategory(ctx, Scope{})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"textiles": "1200.00", "coffee": "900.00", "spices": "450.00"}
	if len(cats) != len(want) {
		t.Fatalf("categories = %+v", cats)
	}
	for _, c := range cats {
		if want[c.Key] != c.Revenue.String() {
			t.Errorf("category %s revenue = %s, want %s", c.Key, c.Revenue, want[c.Key])
		}
	}

	regions, err := s.SalesByRegion(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 || regions[0].Key != "addis_ababa" || regions[0].Orders != 2 {
		t.Errorf("regions = %+v", regions)
	}
}

func TestSignupsByRole(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, role := range []models.Role{models.RoleCustomer, models.RoleCustomer, models.RoleSeller} {
		ev := events.UserRegistered{UserID: primitive.NewObjectID().Hex(), Role: role, At: time.Now()}
		if err := s.IngestSignup(ctx, ev); err != nil {
			t.Fatalf("IngestSignup %d: %v", i, err)
		}
	}

	got, err := s.SignupsByRole(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if got[models.RoleCustomer] != 2 || got[models.RoleSeller] != 1 {
		t.Errorf("signups = %v", got)
	}
}

func TestClamp(t *testing.T) {
	if clampDays(0) != defaultDashboardDays || clampDays(1000) != maxDashboardDays || clampDays(7) != 7 {
		t.Error("clampDays")
	}
	if clampLimit(0) != defaultTopLimit || clampLimit(500) != defaultTopLimit || clampLimit(3) != 3 {
		t.Error("clampLimit")
	}
}
