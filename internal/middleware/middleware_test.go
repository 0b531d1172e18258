// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
)

// =============================================================================
// RequestID
// =============================================================================

func TestRequestID(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantReused bool
	}{
		{"generated", "", false},
		{"reused upstream id", "req-123", true},
		{"rejects unsafe id", "bad id\nwith newline", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID, corrID string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetRequestID(r.Context())
				corrID = logging.CorrelationIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if ctxID == "" || rec.Header().Get(HeaderRequestID) != ctxID {
				t.Errorf("context id %q, header %q", ctxID, rec.Header().Get(HeaderRequestID))
			}
			if (ctxID == tt.header) != tt.wantReused {
				t.Errorf("reused = %v, want %v", ctxID == tt.header, tt.wantReused)
			}
			if corrID == "" || rec.Header().Get(HeaderCorrelationID) != corrID {
				t.Errorf("correlation id %q, header %q", corrID, rec.Header().Get(HeaderCorrelationID))
			}
		})
	}
}

func TestRequestID_CorrelationHeader(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logging.CorrelationIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "abc12345")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "abc12345" {
		t.Errorf("correlation = %q", got)
	}
}

// =============================================================================
// Prometheus
// =============================================================================

func TestPrometheusMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues("GET", "/orders/{id}", "404")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/def", nil))

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("counter delta = %v, want 2", got)
	}
}

// =============================================================================
// Compression
// =============================================================================

func TestCompression(t *testing.T) {
	body := strings.Repeat("merkato ", 100)
	h := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))

	tests := []struct {
		name     string
		path     string
		encoding string
		upgrade  string
		wantGzip bool
	}{
		{"gzip accepted", "/products", "gzip, deflate", "", true},
		{"no encoding", "/products", "", "", false},
		{"websocket", "/ws", "gzip", "websocket", false},
		{"metrics", "/metrics", "gzip", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.encoding != "" {
				req.Header.Set("Accept-Encoding", tt.encoding)
			}
			if tt.upgrade != "" {
				req.Header.Set("Upgrade", tt.upgrade)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			gotGzip := rec.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tt.wantGzip)
			}
			if !gotGzip {
				if rec.Body.String() != body {
					t.Error("body altered")
				}
				return
			}
			zr, err := gzip.NewReader(rec.Body)
			if err != nil {
				t.Fatal(err)
			}
			plain, err := io.ReadAll(zr)
			if err != nil {
				t.Fatal(err)
			}
			if string(plain) != body {
				t.Error("decompressed body mismatch")
			}
		})
	}
}

// =============================================================================
// PerformanceMonitor
// =============================================================================

func TestPerformanceMonitor_Window(t *testing.T) {
	pm := NewPerformanceMonitor(3, time.Second)
	for i := 1; i <= 5; i++ {
		pm.RecordRequest(RequestMetrics{Route: "/products", Method: "GET", DurationMS: int64(i)})
	}

	recent := pm.GetRecentMetrics(10)
	if len(recent) != 3 {
		t.Fatalf("window = %d, want 3", len(recent))
	}
	if recent[0].DurationMS != 3 || recent[2].DurationMS != 5 {
		t.Errorf("window = %+v", recent)
	}
}

func TestPerformanceMonitor_Stats(t *testing.T) {
	pm := NewPerformanceMonitor(100, time.Second)
	for _, d := range []int64{10, 20, 30, 40} {
		pm.RecordRequest(RequestMetrics{Route: "/orders", Method: "GET", DurationMS: d, StatusCode: 200})
	}
	pm.RecordRequest(RequestMetrics{Route: "/orders", Method: "POST", DurationMS: 100, StatusCode: 500})

	stats := pm.GetStats()
	if len(stats) != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	get := stats[0]
	if get.Endpoint != "GET /orders" || get.RequestCount != 4 {
		t.Errorf("first = %+v", get)
	}
	if get.AvgDuration != 25 || get.MinDuration != 10 || get.MaxDuration != 40 || get.P50Duration != 20 {
		t.Errorf("latency = %+v", get)
	}
	if stats[1].ErrorCount != 1 {
		t.Errorf("post errors = %d", stats[1].ErrorCount)
	}
}

func TestPerformanceMonitor_Middleware(t *testing.T) {
	pm := NewPerformanceMonitor(10, time.Second)
	r := chi.NewRouter()
	r.Use(pm.Middleware)
	r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders", nil))

	recent := pm.GetRecentMetrics(1)
	if len(recent) != 1 {
		t.Fatal("expected one metric")
	}
	m := recent[0]
	if m.Route != "/orders" || m.StatusCode != http.StatusCreated || m.Bytes != 16 {
		t.Errorf("metric = %+v", m)
	}
}

func TestPercentile(t *testing.T) {
	if percentile(nil, 0.5) != 0 {
		t.Error("empty")
	}
	if got := percentile([]int64{1, 2, 3, 4, 5}, 0.5); got != 3 {
		t.Errorf("p50 = %d", got)
	}
}
