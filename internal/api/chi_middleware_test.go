// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/config"
)

// =====================================================
// ChiMiddleware Configuration Tests
// =====================================================

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	m := NewChiMiddleware(nil, nil, nil)

	if m.config == nil {
		t.Fatal("config is nil")
	}
	// Secure by default: origins must be configured explicitly.
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want 86400", m.config.CORSMaxAge)
	}
	if m.config.AuthRequests != 5 || m.config.AuthWindow != time.Minute {
		t.Errorf("auth limit = %d/%v, want 5/1m", m.config.AuthRequests, m.config.AuthWindow)
	}
}

func TestChiMiddlewareConfigFrom(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		credentials bool
	}{
		{"none", nil, false},
		{"explicit", []string{"https://merkato.et", "https://admin.merkato.et"}, true},
		{"wildcard", []string{"*"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ChiMiddlewareConfigFrom(&config.SecurityConfig{CORSOrigins: tt.origins, RateLimitDisabled: true})
			if c.CORSAllowCredentials != tt.credentials {
				t.Errorf("CORSAllowCredentials = %v, want %v", c.CORSAllowCredentials, tt.credentials)
			}
			if len(c.CORSAllowedOrigins) != len(tt.origins) {
				t.Errorf("origins = %v", c.CORSAllowedOrigins)
			}
			if !c.RateLimitDisabled {
				t.Error("RateLimitDisabled not copied")
			}
		})
	}
}

// =====================================================
// CORS Middleware Tests
// =====================================================

func TestChiMiddleware_CORS_Preflight(t *testing.T) {
	m := NewChiMiddleware(ChiMiddlewareConfigFrom(&config.SecurityConfig{
		CORSOrigins: []string{"https://merkato.et"},
	}), nil, nil)
	handler := m.CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		origin string
		want   string
	}{
		{"https://merkato.et", "https://merkato.et"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

// =====================================================
// Rate Limit Middleware Tests
// =====================================================

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChiMiddleware_RateLimit_Disabled(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	cfg.WriteRequests = 1
	m := NewChiMiddleware(cfg, nil, auth.NewSlidingWindowLimiter(1, time.Minute))

	handler := m.RateLimit()(m.RateLimitWrites()(okHandler()))
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

func TestChiMiddleware_RateLimitGlobal(t *testing.T) {
	m := NewChiMiddleware(DefaultChiMiddlewareConfig(), nil, auth.NewSlidingWindowLimiter(2, time.Minute))
	handler := m.RateLimit()(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.RemoteAddr = "196.188.10.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// A different client has its own window.
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = "196.188.10.2:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestChiMiddleware_RateLimitWrites_ReadsUnlimited(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.WriteRequests = 1
	m := NewChiMiddleware(cfg, nil, nil)
	handler := m.RateLimitWrites()(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %d: status = %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first POST: status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/products/x", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second write: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
}

func TestAPISecurityHeadersMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	APISecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options not set")
	}
}
