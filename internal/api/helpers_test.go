// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/authz"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/memstore"
	"github.com/tomtom215/merkato/internal/middleware"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/response"
	"github.com/tomtom215/merkato/internal/service"
	"github.com/tomtom215/merkato/internal/store"
)

const testPassword = "selam-1234"

// testServer is the full router over an in-memory store.
type testServer struct {
	handler http.Handler
	store   *store.Store
	tokens  *auth.TokenManager
	hasher  *auth.Hasher
	seq     int
}

type serverOptions struct {
	config func(*config.Config)
	mw     *ChiMiddlewareConfig
	checks []ReadinessCheck
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	cfg := config.Defaults()
	cfg.Security.JWTSecret = "merkato-api-test-secret-0123456789"
	cfg.Security.BcryptCost = 4
	cfg.Security.RateLimitDisabled = true
	cfg.Security.CORSOrigins = []string{"https://merkato.example"}
	if opts.config != nil {
		opts.config(cfg)
	}

	tokens, err := auth.NewTokenManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	st := memstore.NewStore()
	hasher := auth.NewHasher(cfg.Security.BcryptCost)
	svc, err := service.New(service.Deps{Store: st, Config: cfg, Tokens: tokens, Hasher: hasher})
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}

	authn := auth.NewAuthenticator(tokens, nil, st.Users.GetByID)
	ips := auth.NewIPResolver(cfg.Security.TrustedProxies)
	h, err := NewHandler(HandlerDeps{
		Services: svc,
		Config:   cfg,
		Auth:     authn,
		IPs:      ips,
		Perf:     middleware.NewPerformanceMonitor(100, time.Second),
		Checks:   opts.checks,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	enforcer, err := authz.NewEnforcer(config.CasbinConfig{})
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)

	mwCfg := opts.mw
	if mwCfg == nil {
		mwCfg = ChiMiddlewareConfigFrom(&cfg.Security)
	}
	router := NewRouter(h, NewChiMiddleware(mwCfg, ips, nil), enforcer)

	return &testServer{
		handler: router.SetupChi(),
		store:   st,
		tokens:  tokens,
		hasher:  hasher,
	}
}

// envelope mirrors response.Envelope with raw data for per-test decoding.
type envelope struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	Data       json.RawMessage      `json:"data"`
	Errors     []string             `json:"errors"`
	Pagination *response.Pagination `json:"pagination"`
}

func (e *envelope) decode(t *testing.T, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(e.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", e.Data, err)
	}
}

// do sends a request as the holder of token ("" for anonymous).
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()
	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, path, nil)
	case string:
		req = httptest.NewRequest(method, path, bytes.NewBufferString(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	env := &envelope{}
	if ct := rec.Header().Get("Content-Type"); ct == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), env); err != nil {
			t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

// expect fails the test unless the response has the given status.
func expect(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, status, rec.Body.String())
	}
}

// user stores an account and returns it with a signed token.
func (s *testServer) user(t *testing.T, role models.Role, approved bool) (*models.User, string) {
	t.Helper()
	hash, err := s.hasher.Hash(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	s.seq++
	u := &models.User{
		Name:         fmt.Sprintf("%s %d", role, s.seq),
		Email:        fmt.Sprintf("%s%d@merkato.et", role, s.seq),
		Phone:        "+251911000000",
		PasswordHash: hash,
		Role:         role,
		IsApproved:   approved,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	switch role {
	case models.RoleSeller:
		u.Seller = &models.SellerProfile{BusinessName: fmt.Sprintf("Shop %d", s.seq)}
	case models.RoleDeliveryAgent:
		u.Delivery = &models.DeliveryProfile{VehicleType: "motorcycle", Available: true}
	}
	if err := s.store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, _, err := s.tokens.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return u, token
}

func (s *testServer) product(t *testing.T, seller *models.User, price float64, stock int) *models.Product {
	t.Helper()
	s.seq++
	p := &models.Product{
		Name:        fmt.Sprintf("Sidamo %d", s.seq),
		Description: "Washed highland coffee",
		Price:       models.NewMoney(price),
		Stock:       stock,
		Category:    models.CategoryCoffee,
		Region:      models.RegionAddisAbaba,
		SellerID:    seller.ID,
		SellerName:  seller.DisplayName(),
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Products.Create(context.Background(), p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func shippingAddress() map[string]string {
	return map[string]string{"street": "Bole Road", "city": "Addis Ababa", "region": "addis_ababa"}
}
