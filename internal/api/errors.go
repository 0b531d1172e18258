// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/orderflow"
	"github.com/tomtom215/merkato/internal/response"
	"github.com/tomtom215/merkato/internal/service"
	"github.com/tomtom215/merkato/internal/validation"
)

// errorMapping pairs an error kind with its status and the message used
// when the error carries none of its own.
type errorMapping struct {
	kind    error
	status  int
	message string
}

// Order matters: the first kind that matches wins.
var errorMappings = []errorMapping{
	{service.ErrEmptyOrder, http.StatusBadRequest, "Order must contain at least one item"},
	{service.ErrBadRequest, http.StatusBadRequest, "Bad request"},
	{orderflow.ErrUnknownStatus, http.StatusBadRequest, "Unknown order status"},
	{orderflow.ErrNotPermitted, http.StatusForbidden, "You cannot set this order status"},
	{service.ErrInvalidTransition, http.StatusBadRequest, "Invalid status transition"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{service.ErrAccountInactive, http.StatusForbidden, "Your account has been deactivated"},
	{service.ErrNotApproved, http.StatusForbidden, "Your account is pending approval"},
	{service.ErrForbidden, http.StatusForbidden, "You do not have permission to perform this action"},
	{service.ErrNotFound, http.StatusNotFound, "Resource not found"},
	{service.ErrInsufficientStock, http.StatusConflict, "Insufficient stock"},
	{service.ErrDuplicate, http.StatusConflict, "Resource already exists"},
	{service.ErrConflict, http.StatusConflict, "Request conflicts with the current state"},
	{service.ErrUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "Request timed out"},
}

// statusFor returns the HTTP status for err and a default message.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// respondServiceError writes the failure envelope for an error returned by
// the service layer. Unexpected errors are logged and answered with a
// generic message; the underlying error never reaches the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		response.ValidationFailed(w, r, verr.Messages())
		return
	}

	status, fallback := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		response.Error(w, r, status, fallback)
		return
	}
	response.Error(w, r, status, service.Message(err, fallback))
}

// respondValidation writes a 400 for request errors found by the handler
// itself (query parameters, path values).
func respondValidation(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	response.ValidationFailed(w, r, verr.Messages())
}
