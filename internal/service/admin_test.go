// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/merkato/internal/events"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/store"
)

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, false)
	customer := f.user(t, models.RoleCustomer, true)

	got, err := f.svc.Admin.Approve(ctx, seller.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !got.IsApproved {
		t.Error("seller not approved")
	}
	if _, err := f.svc.Admin.Approve(ctx, customer.ID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("approve customer: err = %v, want ErrBadRequest", err)
	}
	if sent := f.flushMail(t); !containsTemplate(sent, notify.TemplateSellerApproved) {
		t.Errorf("sent = %v, want seller approved", sent)
	}

	// The approved seller's products become visible.
	p := f.product(t, got, 100, 5)
	if _, err := f.svc.Catalog.Get(ctx, p.ID, customer); err != nil {
		t.Errorf("Get after approval: %v", err)
	}
}

func TestSetUserActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin, true)
	customer := f.user(t, models.RoleCustomer, true)
	off, on := false, true

	got, err := f.svc.Admin.SetUserActive(ctx, admin, customer.ID, UserStatusInput{IsActive: &off, Reason: "Fraud review"})
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got.IsActive {
		t.Error("still active")
	}
	if _, err := f.svc.Auth.Login(ctx, LoginInput{Email: customer.Email, Password: testPassword}); !errors.Is(err, ErrAccountInactive) {
		t.Errorf("login while inactive: err = %v, want ErrAccountInactive", err)
	}
	if _, err := f.svc.Admin.SetUserActive(ctx, admin, customer.ID, UserStatusInput{IsActive: &on}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, err := f.svc.Admin.SetUserActive(ctx, admin, admin.ID, UserStatusInput{IsActive: &off}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("deactivate self: err = %v, want ErrBadRequest", err)
	}
	if _, err := f.svc.Admin.SetUserActive(ctx, admin, customer.ID, UserStatusInput{}); err == nil {
		t.Error("missing isActive should fail validation")
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin, true)
	customer := f.user(t, models.RoleCustomer, true)

	if err := f.svc.Admin.DeleteUser(ctx, admin, admin.ID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("delete self: err = %v, want ErrBadRequest", err)
	}
	if err := f.svc.Admin.DeleteUser(ctx, admin, customer.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := f.svc.Admin.GetUser(ctx, customer.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser after delete: err = %v, want ErrNotFound", err)
	}
}

func TestAdminModeratesProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	p := f.product(t, seller, 100, 5)

	got, err := f.svc.Admin.SetProductActive(ctx, p.ID, false)
	if err != nil || got.IsActive {
		t.Fatalf("SetProductActive = %+v, %v", got, err)
	}
	_, total, err := f.svc.Catalog.List(ctx, store.ProductFilter{})
	if err != nil || total != 0 {
		t.Errorf("public total = %d, %v; want 0", total, err)
	}
	_, total, err = f.svc.Admin.ListProducts(ctx, store.ProductFilter{})
	if err != nil || total != 1 {
		t.Errorf("admin total = %d, %v; want 1", total, err)
	}

	if got, err := f.svc.Admin.SetProductFeatured(ctx, p.ID, true); err != nil || !got.IsFeatured {
		t.Errorf("SetProductFeatured = %+v, %v", got, err)
	}
	if err := f.svc.Admin.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if err := f.svc.Admin.DeleteProduct(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestAssignOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin, true)
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	first := f.user(t, models.RoleDeliveryAgent, true)
	second := f.user(t, models.RoleDeliveryAgent, true)
	pending := f.user(t, models.RoleDeliveryAgent, false)
	o := f.placeOrder(t, customer, f.product(t, seller, 100, 5), 1)

	tests := []struct {
		name    string
		agent   *models.User
		wantErr error
	}{
		{"customer is not an agent", customer, ErrBadRequest},
		{"unapproved agent", pending, ErrBadRequest},
		{"first agent", first, nil},
		{"reassign", second, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Admin.AssignOrder(ctx, admin, o.ID, AssignInput{AgentID: tt.agent.ID.Hex()})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AssignOrder: %v", err)
			}
			if !got.IsAssignedTo(tt.agent.ID) {
				t.Errorf("agent = %v, want %s", got.DeliveryAgentID, tt.agent.ID.Hex())
			}
		})
	}
	if n := f.events.count(events.TopicOrderAssigned); n != 2 {
		t.Errorf("assigned events = %d, want 2", n)
	}

	f.advance(t, admin, o, models.StatusAccepted, models.StatusPreparing, models.StatusReadyForPickup, models.StatusDispatched)
	if _, err := f.svc.Admin.AssignOrder(ctx, admin, o.ID, AssignInput{AgentID: first.ID.Hex()}); !errors.Is(err, ErrConflict) {
		t.Errorf("assign dispatched order: err = %v, want ErrConflict", err)
	}
}

func TestAdminStatusOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin, true)
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	p := f.product(t, seller, 100, 5)
	o := f.placeOrder(t, customer, p, 2)
	o = f.advance(t, seller, o, models.StatusAccepted, models.StatusPreparing, models.StatusReadyForPickup)

	got, err := f.svc.Admin.UpdateOrderStatus(ctx, admin, o.ID, StatusInput{Status: "cancelled", Reason: "Courier unavailable"})
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if got.Status != models.StatusCancelled || got.CancelReason != "Courier unavailable" {
		t.Errorf("order = %s %q", got.Status, got.CancelReason)
	}
	if stock := f.stock(t, p); stock != 5 {
		t.Errorf("stock = %d, want 5", stock)
	}
}

func TestBulkEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, models.RoleSeller, true)
	f.user(t, models.RoleSeller, false)
	inactive := f.user(t, models.RoleSeller, true)
	inactive.IsActive = false
	if err := f.store.Users.Update(ctx, inactive); err != nil {
		t.Fatal(err)
	}
	f.user(t, models.RoleCustomer, true)

	res, err := f.svc.Admin.BulkEmail(ctx, BulkEmailInput{
		Role:    "seller",
		Subject: "Meskel holiday schedule",
		Body:    "Deliveries pause on Meskel.",
	})
	if err != nil {
		t.Fatalf("BulkEmail: %v", err)
	}
	if res.Recipients != 2 || res.Role != "seller" {
		t.Errorf("job = %+v, want 2 active sellers", res)
	}
	if f.pusher.pushed.Load() != 2 {
		t.Errorf("pushed = %d, want 2", f.pusher.pushed.Load())
	}
	announcements := 0
	for _, name := range f.flushMail(t) {
		if name == notify.TemplateAnnouncement {
			announcements++
		}
	}
	if announcements != 2 {
		t.Errorf("announcements sent = %d, want 2", announcements)
	}

	if _, err := f.svc.Admin.BulkEmail(ctx, BulkEmailInput{Role: "delivery_agent", Subject: "Hello", Body: "Hi all"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("no recipients: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Admin.BulkEmail(ctx, BulkEmailInput{Role: "pilot", Subject: "Hello", Body: "Hi"}); err == nil {
		t.Error("unknown role should fail validation")
	}
}
