// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/orderflow"
	"github.com/tomtom215/merkato/internal/service"
	"github.com/tomtom215/merkato/internal/store"
	"github.com/tomtom215/merkato/internal/validation"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", store.ErrNotFound), http.StatusNotFound},
		{"duplicate", store.ErrDuplicate, http.StatusConflict},
		{"stock", &service.StockError{Name: "Teff"}, http.StatusConflict},
		{"invalid transition", &orderflow.TransitionError{
			From: models.StatusDelivered, To: models.StatusPending, Err: orderflow.ErrInvalidTransition,
		}, http.StatusBadRequest},
		{"not permitted", &orderflow.TransitionError{
			From: models.StatusPending, To: models.StatusDelivered, Role: models.RoleCustomer, Err: orderflow.ErrNotPermitted,
		}, http.StatusForbidden},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"inactive", service.ErrAccountInactive, http.StatusForbidden},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"unavailable", service.ErrUnavailable, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRespondServiceError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	respondServiceError(rec, req, errors.New("mongo: connection string has password hunter2"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Success || env.Message != "Internal server error" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestRespondServiceError_Validation(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	verr := validation.NewRequestError("items", "items must contain at least one product").
		Add("shippingAddress.city", "city is required")
	respondServiceError(rec, req, fmt.Errorf("place: %w", verr))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if len(env.Errors) != 2 {
		t.Errorf("errors = %v, want 2", env.Errors)
	}
}

func TestQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?"+url.Values{
		"page":     {"2"},
		"featured": {"true"},
		"status":   {"pending, accepted"},
		"since":    {"2026-01-07"},
		"role":     {"seller"},
	}.Encode(), nil)
	q := newQueryParams(req)

	if got := q.integer("page", 1); got != 2 {
		t.Errorf("page = %d", got)
	}
	if got := q.boolean("featured"); got == nil || !*got {
		t.Errorf("featured = %v", got)
	}
	if got := q.boolean("missing"); got != nil {
		t.Errorf("missing = %v, want nil", got)
	}
	if got := q.statuses("status"); len(got) != 2 || got[1] != models.StatusAccepted {
		t.Errorf("statuses = %v", got)
	}
	if got := q.timestamp("since"); got.Day() != 7 {
		t.Errorf("since = %v", got)
	}
	if got := q.role("role"); got != models.RoleSeller {
		t.Errorf("role = %q", got)
	}
	if verr := q.err(); verr != nil {
		t.Fatalf("unexpected errors: %v", verr.Messages())
	}

	bad := newQueryParams(httptest.NewRequest(http.MethodGet, "/?page=x&status=lost&since=yesterday", nil))
	bad.integer("page", 1)
	bad.statuses("status")
	bad.timestamp("since")
	verr := bad.err()
	if verr == nil || len(verr.Messages()) != 3 {
		t.Fatalf("want 3 problems, got %v", verr)
	}
}
