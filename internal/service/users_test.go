// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/store"
)

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, models.RoleSeller, true)
	customer := f.user(t, models.RoleCustomer, true)
	name, phone, business := "Tsion Bekele", "0722334455", "Tsion Textiles"
	addr := AddressInput{City: "Bahir Dar", Region: "amhara"}

	got, err := f.svc.Users.UpdateProfile(ctx, seller.ID, ProfileInput{
		Name:         &name,
		Phone:        &phone,
		Address:      &addr,
		BusinessName: &business,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.Name != name || got.Phone != "+251722334455" || got.Seller.BusinessName != business {
		t.Errorf("profile = %q %q %+v", got.Name, got.Phone, got.Seller)
	}
	if got.Address == nil || got.Address.Region != models.RegionAmhara {
		t.Errorf("Address = %+v", got.Address)
	}

	// Seller fields are ignored for customers.
	got, err = f.svc.Users.UpdateProfile(ctx, customer.ID, ProfileInput{BusinessName: &business})
	if err != nil {
		t.Fatalf("UpdateProfile customer: %v", err)
	}
	if got.Seller != nil {
		t.Errorf("customer gained a seller profile: %+v", got.Seller)
	}

	bad := "12345"
	if _, err := f.svc.Users.UpdateProfile(ctx, customer.ID, ProfileInput{Phone: &bad}); err == nil {
		t.Error("invalid phone accepted")
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleCustomer, true)

	tests := []struct {
		name    string
		in      PasswordInput
		wantErr error
	}{
		{"wrong current password", PasswordInput{CurrentPassword: "wrong-pass", NewPassword: "new-password-1"}, ErrInvalidCredentials},
		{"valid", PasswordInput{CurrentPassword: testPassword, NewPassword: "new-password-1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Users.ChangePassword(ctx, u.ID, tt.in, "196.188.0.1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := f.svc.Auth.Login(ctx, LoginInput{Email: u.Email, Password: "new-password-1"}); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if _, err := f.svc.Auth.Login(ctx, LoginInput{Email: u.Email, Password: testPassword}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("login with old password: err = %v", err)
	}
	if sent := f.flushMail(t); !containsTemplate(sent, notify.TemplatePasswordChanged) {
		t.Errorf("sent = %v, want password changed", sent)
	}
}

func TestPublicSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approved := f.user(t, models.RoleSeller, true)
	pending := f.user(t, models.RoleSeller, false)
	customer := f.user(t, models.RoleCustomer, true)

	v, err := f.svc.Users.PublicSeller(ctx, approved.ID)
	if err != nil {
		t.Fatalf("PublicSeller: %v", err)
	}
	if v.BusinessName != approved.Seller.BusinessName {
		t.Errorf("BusinessName = %q", v.BusinessName)
	}
	for _, u := range []*models.User{pending, customer} {
		if _, err := f.svc.Users.PublicSeller(ctx, u.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("PublicSeller(%s): err = %v, want ErrNotFound", u.Name, err)
		}
	}

	list, total, err := f.svc.Users.Sellers(ctx, "", store.NewPage(1, 20))
	if err != nil || total != 1 || len(list) != 1 {
		t.Errorf("Sellers = %d (total %d), %v", len(list), total, err)
	}
}

// =============================================================================
// Notifications
// =============================================================================

func TestNotificationsFromEventsAndReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleCustomer, true)
	other := f.user(t, models.RoleCustomer, true)

	for i := 0; i < 3; i++ {
		if err := f.svc.Notifications.Notify(ctx, &models.Notification{
			UserID:  u.ID,
			Type:    models.NotificationOrderStatus,
			Title:   "Order update",
			Message: "Your order moved",
		}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	page, err := f.svc.Notifications.List(ctx, u.ID, false, store.NewPage(1, 20))
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || page.Unread != 3 {
		t.Fatalf("page = total %d unread %d", page.Total, page.Unread)
	}

	if err := f.svc.Notifications.MarkRead(ctx, other.ID, page.Items[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead by another user: err = %v, want ErrNotFound", err)
	}
	if err := f.svc.Notifications.MarkRead(ctx, u.ID, page.Items[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n, _ := f.svc.Notifications.UnreadCount(ctx, u.ID); n != 2 {
		t.Errorf("unread = %d, want 2", n)
	}
	if n, err := f.svc.Notifications.MarkAllRead(ctx, u.ID); err != nil || n != 2 {
		t.Errorf("MarkAllRead = %d, %v; want 2", n, err)
	}
	if f.pusher.pushed.Load() != 3 {
		t.Errorf("pushed = %d, want 3", f.pusher.pushed.Load())
	}
}

func TestNotifyWithKeyDeliversOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleSeller, true)

	for i := 0; i < 2; i++ {
		if err := f.svc.Notifications.Notify(ctx, &models.Notification{
			UserID:  u.ID,
			Type:    models.NotificationNewOrder,
			Title:   "New order",
			Message: "Order MRK-1 includes 2 unit(s) of your products.",
			Key:     "evt-1:" + u.ID.Hex() + ":new_order",
		}); err != nil {
			t.Fatalf("Notify attempt %d: %v", i, err)
		}
	}

	page, err := f.svc.Notifications.List(ctx, u.ID, false, store.NewPage(1, 20))
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Errorf("stored = %d, want 1", page.Total)
	}
	if f.pusher.pushed.Load() != 1 {
		t.Errorf("pushed = %d, want 1", f.pusher.pushed.Load())
	}
}

// =============================================================================
// Dashboards
// =============================================================================

func TestDashboardsWithoutAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, models.RoleAdmin, true)
	seller := f.user(t, models.RoleSeller, true)
	f.user(t, models.RoleSeller, false)
	f.user(t, models.RoleDeliveryAgent, false)
	customer := f.user(t, models.RoleCustomer, true)
	p := f.product(t, seller, 200, 6)
	kept := f.placeOrder(t, customer, p, 2)
	cancelled := f.placeOrder(t, customer, p, 1)
	if _, err := f.svc.Orders.Cancel(ctx, customer, cancelled.ID, ""); err != nil {
		t.Fatal(err)
	}

	admin, err := f.svc.Dashboards.Admin(ctx, 0)
	if err != nil {
		t.Fatalf("Admin: %v", err)
	}
	if admin.WindowDays != 30 || admin.Report != nil {
		t.Errorf("window = %d, report = %v", admin.WindowDays, admin.Report)
	}
	if admin.Users[models.RoleSeller] != 2 || admin.PendingApprovals != 2 {
		t.Errorf("users = %v, pending = %d", admin.Users, admin.PendingApprovals)
	}
	if admin.Orders[models.StatusPending] != 1 || admin.Orders[models.StatusCancelled] != 1 {
		t.Errorf("orders = %v", admin.Orders)
	}

	sd, err := f.svc.Dashboards.Seller(ctx, seller, 7)
	if err != nil {
		t.Fatalf("Seller: %v", err)
	}
	if sd.Products != 1 || len(sd.LowStock) != 1 || len(sd.RecentOrders) != 2 {
		t.Errorf("seller dashboard = products %d, low stock %d, recent %d", sd.Products, len(sd.LowStock), len(sd.RecentOrders))
	}

	cs, err := f.svc.Dashboards.Customer(ctx, customer)
	if err != nil {
		t.Fatalf("Customer: %v", err)
	}
	if cs.TotalOrders != 2 || !cs.TotalSpent.Equal(kept.Total) {
		t.Errorf("customer summary = %d orders, spent %s, want %s", cs.TotalOrders, cs.TotalSpent, kept.Total)
	}
}
