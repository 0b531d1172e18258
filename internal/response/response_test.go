// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package response

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders/x", nil)
	Error(rec, req, http.StatusNotFound, "Order not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	env := decode(t, rec)
	if env.Success || env.Message != "Order not found" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestValidationFailed(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	ValidationFailed(rec, req, []string{"items must contain at least one item"})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	env := decode(t, rec)
	if env.Message != "Validation failed" || len(env.Errors) != 1 {
		t.Errorf("envelope = %+v", env)
	}
}

func TestTooManyRequests(t *testing.T) {
	tests := []struct {
		retry time.Duration
		want  string
	}{
		{0, "1"},
		{1500 * time.Millisecond, "2"},
		{30 * time.Second, "30"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		TooManyRequests(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.retry)
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != tt.want {
			t.Errorf("Retry-After(%v) = %q, want %q", tt.retry, got, tt.want)
		}
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	if p.Pages != 3 || !p.HasMore {
		t.Errorf("page 2 = %+v", p)
	}
	p = NewPagination(3, 20, 45)
	if p.HasMore {
		t.Errorf("page 3 should be last: %+v", p)
	}
	p = NewPagination(1, 0, 45)
	if p.Pages != 0 || p.HasMore {
		t.Errorf("unlimited = %+v", p)
	}
}

func TestOKAndCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, "Order placed", map[string]string{"orderNumber": "MRK-1"})
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d", rec.Code)
	}
	env := decode(t, rec)
	if !env.Success || env.Message != "Order placed" {
		t.Errorf("envelope = %+v", env)
	}

	rec = httptest.NewRecorder()
	Accepted(rec, "Bulk email queued", map[string]int{"recipients": 2})
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if env := decode(t, rec); !env.Success || env.Message != "Bulk email queued" {
		t.Errorf("envelope = %+v", env)
	}
}
