// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package authz

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/models"
)

func newTestEnforcer(t *testing.T, cacheEnabled bool) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(config.CasbinConfig{CacheEnabled: cacheEnabled, CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

// ===================================================================================================
// Policy
// ===================================================================================================

func TestEmbeddedPolicy(t *testing.T) {
	e := newTestEnforcer(t, false)
	tests := []struct {
		role   models.Role
		object string
		action string
		want   bool
	}{
		{models.RoleCustomer, ObjectCart, ActionWrite, true},
		{models.RoleCustomer, ObjectCart, ActionDelete, true},
		{models.RoleCustomer, ObjectOrders, ActionWrite, true},
		{models.RoleCustomer, ObjectReviews, ActionWrite, true},
		{models.RoleCustomer, ObjectProducts, ActionWrite, false},
		{models.RoleCustomer, ObjectAdmin, ActionRead, false},
		{models.RoleCustomer, ObjectDelivery, ActionRead, false},

		{models.RoleSeller, ObjectProducts, ActionDelete, true},
		{models.RoleSeller, ObjectCart, ActionRead, false},
		{models.RoleSeller, ObjectReviews, ActionWrite, false},
		{models.RoleSeller, ObjectAdmin, ActionWrite, false},

		{models.RoleDeliveryAgent, ObjectDelivery, ActionWrite, true},
		{models.RoleDeliveryAgent, ObjectProducts, ActionWrite, false},
		{models.RoleDeliveryAgent, ObjectWishlist, ActionRead, false},

		{models.RoleAdmin, ObjectAdmin, ActionDelete, true},
		{models.RoleAdmin, ObjectProducts, ActionDelete, true},
		{models.RoleAdmin, ObjectDelivery, ActionWrite, true},
		{models.RoleAdmin, ObjectCart, ActionRead, true},

		{"stranger", ObjectProducts, ActionRead, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.object+"/"+tt.action, func(t *testing.T) {
			got, err := e.Enforce(string(tt.role), tt.object, tt.action)
			if err != nil {
				t.Fatalf("Enforce() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCachedDecisionsMatch(t *testing.T) {
	e := newTestEnforcer(t, true)
	for i := 0; i < 3; i++ {
		allowed, err := e.Enforce("seller", ObjectProducts, ActionWrite)
		if err != nil || !allowed {
			t.Fatalf("pass %d: %v, %v", i, allowed, err)
		}
		denied, err := e.Enforce("customer", ObjectAdmin, ActionRead)
		if err != nil || denied {
			t.Fatalf("pass %d: %v, %v", i, denied, err)
		}
	}
	if e.decisions.Len() != 2 {
		t.Errorf("cached decisions = %d, want 2", e.decisions.Len())
	}
	if err := e.Reload(); err != nil {
		t.Fatal(err)
	}
	if e.decisions.Len() != 0 {
		t.Error("Reload() should clear cached decisions")
	}
}

func TestPermissionsIncludeInherited(t *testing.T) {
	e := newTestEnforcer(t, false)
	perms, err := e.Permissions("admin")
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, p := range perms {
		seen[p[0]+":"+p[1]] = true
	}
	for _, want := range []string{"admin:*", "delivery:*", "products:*", "cart:*"} {
		if !seen[want] {
			t.Errorf("admin permissions missing %s: %v", want, perms)
		}
	}
}

func TestPolicyFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(path, []byte("p, customer, admin, read\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	e, err := NewEnforcer(config.CasbinConfig{PolicyPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if ok, _ := e.Enforce("customer", ObjectAdmin, ActionRead); !ok {
		t.Error("file policy should grant customer admin read")
	}
	if ok, _ := e.Enforce("customer", ObjectCart, ActionRead); ok {
		t.Error("file policy replaces the embedded one")
	}
}

// ===================================================================================================
// Middleware
// ===================================================================================================

func TestActionFor(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:     ActionRead,
		http.MethodHead:    ActionRead,
		http.MethodOptions: ActionRead,
		http.MethodPost:    ActionWrite,
		http.MethodPut:     ActionWrite,
		http.MethodPatch:   ActionWrite,
		http.MethodDelete:  ActionDelete,
	}
	for method, want := range tests {
		if got := ActionFor(method); got != want {
			t.Errorf("ActionFor(%s) = %s, want %s", method, got, want)
		}
	}
}

func TestAuthorizeMiddleware(t *testing.T) {
	e := newTestEnforcer(t, true)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		role       models.Role
		object     string
		method     string
		wantStatus int
	}{
		{"customer reads cart", models.RoleCustomer, ObjectCart, http.MethodGet, http.StatusOK},
		{"customer deletes product", models.RoleCustomer, ObjectProducts, http.MethodDelete, http.StatusForbidden},
		{"seller creates product", models.RoleSeller, ObjectProducts, http.MethodPost, http.StatusOK},
		{"agent reads admin", models.RoleDeliveryAgent, ObjectAdmin, http.MethodGet, http.StatusForbidden},
		{"admin patches delivery", models.RoleAdmin, ObjectDelivery, http.MethodPatch, http.StatusOK},
		{"anonymous", "", ObjectCart, http.MethodGet, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			if tt.role != "" {
				claims := &auth.Claims{UserID: "64b7f0c2a1b2c3d4e5f60718", Role: tt.role}
				r = r.WithContext(auth.WithIdentity(r.Context(), claims, nil))
			}
			rec := httptest.NewRecorder()
			e.Authorize(tt.object)(ok).ServeHTTP(rec, r)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
