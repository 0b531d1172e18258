// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/merkato/internal/events"
	"github.com/tomtom215/merkato/internal/metrics"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/orderflow"
	"github.com/tomtom215/merkato/internal/store"
	"github.com/tomtom215/merkato/internal/validation"
)

// =============================================================================
// Placing orders
// =============================================================================

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	p := f.product(t, seller, 450, 5)

	o := f.placeOrder(t, customer, p, 2)

	if !strings.HasPrefix(o.OrderNumber, "MRK-") {
		t.Errorf("OrderNumber = %q, want MRK- prefix", o.OrderNumber)
	}
	if o.Status != models.StatusPending {
		t.Errorf("Status = %s, want pending", o.Status)
	}
	if o.PaymentMethod != models.PaymentCashOnDelivery {
		t.Errorf("PaymentMethod = %s, want cash on delivery", o.PaymentMethod)
	}
	if len(o.TrackingUpdates) != 1 || o.TrackingUpdates[0].Status != models.StatusPending {
		t.Errorf("TrackingUpdates = %+v, want one pending entry", o.TrackingUpdates)
	}
	if !o.Items[0].Price.Equal(p.Price) || o.Items[0].SellerID != seller.ID {
		t.Errorf("item = %+v", o.Items[0])
	}
	if got := f.stock(t, p); got != 3 {
		t.Errorf("stock = %d, want 3", got)
	}
	if n := f.events.count(events.TopicOrderCreated); n != 1 {
		t.Errorf("order created events = %d, want 1", n)
	}
	if sent := f.flushMail(t); !containsTemplate(sent, notify.TemplateOrderConfirmation) {
		t.Errorf("sent templates = %v, want order confirmation", sent)
	}
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	p := f.product(t, seller, 100, 5)
	ctx := context.Background()

	tests := []struct {
		name string
		in   PlaceOrderInput
	}{
		{"no items", PlaceOrderInput{ShippingAddress: addisAddress()}},
		{"missing address", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID.Hex(), Quantity: 1}}}},
		{"zero quantity", PlaceOrderInput{
			Items:           []OrderItemInput{{ProductID: p.ID.Hex(), Quantity: 0}},
			ShippingAddress: addisAddress(),
		}},
		{"bad product id", PlaceOrderInput{
			Items:           []OrderItemInput{{ProductID: "not-an-id", Quantity: 1}},
			ShippingAddress: addisAddress(),
		}},
		{"unknown payment method", PlaceOrderInput{
			Items:           []OrderItemInput{{ProductID: p.ID.Hex(), Quantity: 1}},
			ShippingAddress: addisAddress(),
			PaymentMethod:   "bitcoin",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Orders.Place(ctx, customer, tt.in)
			var verr *validation.RequestValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want RequestValidationError", err)
			}
			if len(verr.Messages()) == 0 {
				t.Error("expected at least one message")
			}
		})
	}
	if got := f.stock(t, p); got != 5 {
		t.Errorf("stock = %d, want 5", got)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer, true)
	_, err := f.svc.Orders.Place(context.Background(), customer, PlaceOrderInput{FromCart: true, ShippingAddress: addisAddress()})
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("err = %v, want ErrEmptyOrder", err)
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	plenty := f.product(t, seller, 100, 10)
	scarce := f.product(t, seller, 100, 1)

	_, err := f.svc.Orders.Place(context.Background(), customer, PlaceOrderInput{
		Items: []OrderItemInput{
			{ProductID: plenty.ID.Hex(), Quantity: 2},
			{ProductID: scarce.ID.Hex(), Quantity: 3},
		},
		ShippingAddress: addisAddress(),
	})
	var se *StockError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StockError", err)
	}
	if se.ProductID != scarce.ID.Hex() || se.Available != 1 || se.Requested != 3 {
		t.Errorf("StockError = %+v", se)
	}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Error("StockError should match ErrInsufficientStock")
	}
	if got := f.stock(t, plenty); got != 10 {
		t.Errorf("stock of first line = %d, want 10", got)
	}
	if n := f.events.count(events.TopicOrderCreated); n != 0 {
		t.Errorf("order created events = %d, want 0", n)
	}
}

func TestReserveReleasesEarlierLines(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, models.RoleSeller, true)
	a := f.product(t, seller, 100, 5)
	b := f.product(t, seller, 100, 1)

	lines := []orderLine{
		{productID: a.ID, quantity: 2},
		{productID: b.ID, quantity: 3},
	}
	_, err := f.svc.Orders.reserve(context.Background(), lines, []*models.Product{a, b})
	var se *StockError
	if !errors.As(err, &se) || se.Available != 1 {
		t.Fatalf("err = %v, want StockError with 1 available", err)
	}
	if got := f.stock(t, a); got != 5 {
		t.Errorf("stock after release = %d, want 5", got)
	}
}

func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, models.RoleSeller, true)
	p := f.product(t, seller, 100, 1)

	const buyers = 8
	customers := make([]*models.User, buyers)
	for i := range customers {
		customers[i] = f.user(t, models.RoleCustomer, true)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, c := range customers {
		wg.Add(1)
		go func(c *models.User) {
			defer wg.Done()
			_, err := f.svc.Orders.Place(context.Background(), c, PlaceOrderInput{
				Items:           []OrderItemInput{{ProductID: p.ID.Hex(), Quantity: 1}},
				ShippingAddress: addisAddress(),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}(c)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
	if got := f.stock(t, p); got != 0 {
		t.Errorf("stock = %d, want 0", got)
	}
}

func TestPlaceOrderFromCartUsesLivePrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	p := f.product(t, seller, 100, 10)

	if _, err := f.svc.Cart.Add(ctx, customer.ID, CartItemInput{ProductID: p.ID.Hex(), Quantity: 2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	newPrice := models.NewMoney(120)
	if _, err := f.store.Products.Update(ctx, p.ID, store.ProductChanges{Price: &newPrice}); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Orders.Place(ctx, customer, PlaceOrderInput{FromCart: true, ShippingAddress: addisAddress()})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !res.Order.Items[0].Price.Equal(models.NewMoney(120)) {
		t.Errorf("item price = %s, want 120", res.Order.Items[0].Price)
	}
	if len(res.PriceChanges) != 1 || !res.PriceChanges[0].OldPrice.Equal(models.NewMoney(100)) {
		t.Errorf("PriceChanges = %+v", res.PriceChanges)
	}
	cart, err := f.svc.Cart.Get(ctx, customer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cart.Items) != 0 {
		t.Errorf("cart has %d items after checkout, want 0", len(cart.Items))
	}
}

func TestPlaceOrderHiddenSeller(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, models.RoleSeller, false)
	customer := f.user(t, models.RoleCustomer, true)
	p := f.product(t, seller, 100, 10)

	_, err := f.svc.Orders.Place(context.Background(), customer, PlaceOrderInput{
		Items:           []OrderItemInput{{ProductID: p.ID.Hex(), Quantity: 1}},
		ShippingAddress: addisAddress(),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestPlaceOrderCountsFailures(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		input  func(t *testing.T, f *fixture) PlaceOrderInput
	}{
		{
			name:   "empty cart",
			reason: "validation",
			input: func(t *testing.T, f *fixture) PlaceOrderInput {
				return PlaceOrderInput{FromCart: true, ShippingAddress: addisAddress()}
			},
		},
		{
			name:   "not enough stock",
			reason: "insufficient_stock",
			input: func(t *testing.T, f *fixture) PlaceOrderInput {
				p := f.product(t, f.user(t, models.RoleSeller, true), 100, 1)
				return PlaceOrderInput{
					Items:           []OrderItemInput{{ProductID: p.ID.Hex(), Quantity: 2}},
					ShippingAddress: addisAddress(),
				}
			},
		},
		{
			name:   "seller not approved",
			reason: "unavailable",
			input: func(t *testing.T, f *fixture) PlaceOrderInput {
				p := f.product(t, f.user(t, models.RoleSeller, false), 100, 5)
				return PlaceOrderInput{
					Items:           []OrderItemInput{{ProductID: p.ID.Hex(), Quantity: 1}},
					ShippingAddress: addisAddress(),
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			customer := f.user(t, models.RoleCustomer, true)
			in := tt.input(t, f)
			counter := metrics.OrderPlacementFailures.WithLabelValues(tt.reason)
			before := testutil.ToFloat64(counter)

			if _, err := f.svc.Orders.Place(context.Background(), customer, in); err == nil {
				t.Fatal("expected Place to fail")
			}
			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("%s failures delta = %v, want 1", tt.reason, got)
			}
		})
	}

	if got := placementFailure(errors.New("mongo: timeout")); got != "internal" {
		t.Errorf("placementFailure(plain error) = %q, want internal", got)
	}
}

func TestNewOrderNumberFormat(t *testing.T) {
	n := NewOrderNumber(mustTime(t, "2026-03-14T10:00:00Z"))
	if !strings.HasPrefix(n, "MRK-20260314-") || len(n) != len("MRK-20260314-")+6 {
		t.Errorf("NewOrderNumber = %q", n)
	}
}

// =============================================================================
// Status transitions
// =============================================================================

func TestUpdateStatusPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	other := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	p := f.product(t, seller, 100, 50)

	tests := []struct {
		name    string
		actor   *models.User
		to      models.OrderStatus
		wantErr error
	}{
		{"seller accepts", seller, models.StatusAccepted, nil},
		{"customer cannot accept", customer, models.StatusAccepted, orderflow.ErrNotPermitted},
		{"seller cannot skip to delivered", seller, models.StatusDelivered, ErrInvalidTransition},
		{"unrelated seller", other, models.StatusAccepted, ErrForbidden},
		{"customer cancels", customer, models.StatusCancelled, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := f.placeOrder(t, customer, p, 1)
			got, err := f.svc.Orders.UpdateStatus(ctx, tt.actor, o.ID, StatusInput{Status: string(tt.to)})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus: %v", err)
			}
			if got.Status != tt.to {
				t.Errorf("Status = %s, want %s", got.Status, tt.to)
			}
		})
	}
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	o := f.placeOrder(t, customer, f.product(t, seller, 100, 5), 1)

	_, err := f.svc.Orders.UpdateStatus(context.Background(), seller, o.ID, StatusInput{Status: "teleported"})
	var verr *validation.RequestValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want RequestValidationError", err)
	}
}

func TestCancelRestocksAndKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	p := f.product(t, seller, 100, 5)

	o := f.placeOrder(t, customer, p, 3)
	o = f.advance(t, seller, o, models.StatusAccepted)

	cancelled, err := f.svc.Orders.Cancel(ctx, customer, o.ID, "Changed my mind")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.CancelReason != "Changed my mind" {
		t.Errorf("CancelReason = %q", cancelled.CancelReason)
	}
	if got := f.stock(t, p); got != 5 {
		t.Errorf("stock = %d, want 5", got)
	}
	wantHistory := []models.OrderStatus{models.StatusPending, models.StatusAccepted, models.StatusCancelled}
	if len(cancelled.TrackingUpdates) != len(wantHistory) {
		t.Fatalf("TrackingUpdates = %d entries, want %d", len(cancelled.TrackingUpdates), len(wantHistory))
	}
	for i, st := range wantHistory {
		if cancelled.TrackingUpdates[i].Status != st {
			t.Errorf("TrackingUpdates[%d] = %s, want %s", i, cancelled.TrackingUpdates[i].Status, st)
		}
	}

	_, err = f.svc.Orders.UpdateStatus(ctx, seller, o.ID, StatusInput{Status: string(models.StatusPreparing)})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("transition out of cancelled: err = %v, want ErrInvalidTransition", err)
	}
}

func TestDeliveredCashOrderIsPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	agent := f.user(t, models.RoleDeliveryAgent, true)

	o := f.placeOrder(t, customer, f.product(t, seller, 100, 5), 1)
	o = f.advance(t, seller, o, models.StatusAccepted, models.StatusPreparing, models.StatusReadyForPickup)
	if _, err := f.svc.Delivery.Claim(ctx, agent, o.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	o = f.advance(t, agent, o, models.StatusDispatched, models.StatusInTransit, models.StatusDelivered)

	if o.PaymentStatus != models.PaymentPaid {
		t.Errorf("PaymentStatus = %s, want paid", o.PaymentStatus)
	}
	if o.DeliveredAt == nil {
		t.Error("DeliveredAt not set")
	}
	if n := f.events.count(events.TopicOrderStatusChanged); n != 6 {
		t.Errorf("status events = %d, want 6", n)
	}
}

func TestOrderVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	stranger := f.user(t, models.RoleCustomer, true)
	admin := f.user(t, models.RoleAdmin, true)
	o := f.placeOrder(t, customer, f.product(t, seller, 100, 5), 1)

	for _, u := range []*models.User{seller, customer, admin} {
		if _, err := f.svc.Orders.Get(ctx, u, o.ID); err != nil {
			t.Errorf("Get as %s: %v", u.Role, err)
		}
	}
	if _, err := f.svc.Orders.Get(ctx, stranger, o.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get as stranger: err = %v, want ErrForbidden", err)
	}

	list, total, err := f.svc.Orders.List(ctx, stranger, nil, store.NewPage(1, 20))
	if err != nil || total != 0 || len(list) != 0 {
		t.Errorf("stranger List = %d items, total %d, err %v", len(list), total, err)
	}
	list, total, err = f.svc.Orders.List(ctx, seller, nil, store.NewPage(1, 20))
	if err != nil || total != 1 || len(list) != 1 {
		t.Errorf("seller List = %d items, total %d, err %v", len(list), total, err)
	}
}

func TestTrackingAllowedNext(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	o := f.placeOrder(t, customer, f.product(t, seller, 100, 5), 1)

	tr, err := f.svc.Orders.Tracking(context.Background(), customer, o.ID)
	if err != nil {
		t.Fatalf("Tracking: %v", err)
	}
	if len(tr.AllowedNext) != 1 || tr.AllowedNext[0] != models.StatusCancelled {
		t.Errorf("AllowedNext = %v, want [cancelled]", tr.AllowedNext)
	}
	if len(tr.Updates) != 1 || tr.Updates[0].Presentation.Label != "Pending" {
		t.Errorf("Updates = %+v", tr.Updates)
	}
}

// =============================================================================
// Delivery
// =============================================================================

func TestClaimOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	o := f.placeOrder(t, customer, f.product(t, seller, 100, 5), 1)
	o = f.advance(t, seller, o, models.StatusAccepted, models.StatusPreparing, models.StatusReadyForPickup)

	agents := []*models.User{
		f.user(t, models.RoleDeliveryAgent, true),
		f.user(t, models.RoleDeliveryAgent, true),
		f.user(t, models.RoleDeliveryAgent, true),
	}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)
	for _, a := range agents {
		wg.Add(1)
		go func(a *models.User) {
			defer wg.Done()
			if _, err := f.svc.Delivery.Claim(ctx, a, o.ID); err == nil {
				mu.Lock()
				claimed++
				mu.Unlock()
			} else if !errors.Is(err, ErrConflict) {
				t.Errorf("Claim: %v", err)
			}
		}(a)
	}
	wg.Wait()

	if claimed != 1 {
		t.Errorf("claimed = %d, want 1", claimed)
	}
	if n := f.events.count(events.TopicOrderAssigned); n != 1 {
		t.Errorf("assigned events = %d, want 1", n)
	}
}

func TestClaimRequiresApprovalAndReadiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	o := f.placeOrder(t, customer, f.product(t, seller, 100, 5), 1)

	pending := f.user(t, models.RoleDeliveryAgent, false)
	if _, err := f.svc.Delivery.Claim(ctx, pending, o.ID); !errors.Is(err, ErrNotApproved) {
		t.Errorf("unapproved agent: err = %v, want ErrNotApproved", err)
	}
	agent := f.user(t, models.RoleDeliveryAgent, true)
	if _, err := f.svc.Delivery.Claim(ctx, agent, o.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("pending order: err = %v, want ErrConflict", err)
	}
	if _, err := f.svc.Delivery.SetAvailability(ctx, agent, false); err != nil {
		t.Fatal(err)
	}
	agent, _ = f.store.Users.GetByID(ctx, agent.ID)
	if _, err := f.svc.Delivery.Claim(ctx, agent, o.ID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("unavailable agent: err = %v, want ErrBadRequest", err)
	}
}

func TestDeliveryStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	agent := f.user(t, models.RoleDeliveryAgent, true)
	p := f.product(t, seller, 100, 10)

	for i := 0; i < 2; i++ {
		o := f.placeOrder(t, customer, p, 1)
		o = f.advance(t, seller, o, models.StatusAccepted, models.StatusPreparing, models.StatusReadyForPickup)
		if _, err := f.svc.Delivery.Claim(ctx, agent, o.ID); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			f.advance(t, agent, o, models.StatusDispatched, models.StatusInTransit, models.StatusDelivered)
		}
	}

	st, err := f.svc.Delivery.Stats(ctx, agent)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Assigned != 2 || st.Delivered != 1 || st.Active != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

func containsTemplate(names []notify.Name, want notify.Name) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
