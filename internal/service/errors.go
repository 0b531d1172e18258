// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"errors"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/orderflow"
	"github.com/tomtom215/merkato/internal/store"
)

// Error kinds. The API layer maps them to HTTP status codes with errors.Is.
var (
	ErrNotFound           = store.ErrNotFound
	ErrConflict           = store.ErrConflict
	ErrDuplicate          = store.ErrDuplicate
	ErrInsufficientStock  = store.ErrInsufficientStock
	ErrAccountInactive    = auth.ErrAccountInactive
	ErrInvalidTransition  = orderflow.ErrInvalidTransition
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotApproved        = errors.New("account is pending approval")
	ErrForbidden          = errors.New("forbidden")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrBadRequest         = errors.New("bad request")
	ErrUnavailable        = errors.New("dependency unavailable")
)

// Error pairs an error kind with the message shown to the client.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func notFound(msg string) *Error   { return newError(ErrNotFound, msg) }
func forbidden(msg string) *Error  { return newError(ErrForbidden, msg) }
func conflict(msg string) *Error   { return newError(ErrConflict, msg) }
func badRequest(msg string) *Error { return newError(ErrBadRequest, msg) }

// Message returns the client-facing message of err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	var te *orderflow.TransitionError
	if errors.As(err, &te) {
		return te.Error()
	}
	var stock *StockError
	if errors.As(err, &stock) {
		return stock.Error()
	}
	return fallback
}

// StockError reports the first line of an order that could not be
// reserved.
type StockError struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (e *StockError) Error() string {
	return "Insufficient stock for " + e.Name
}

func (e *StockError) Unwrap() error { return store.ErrInsufficientStock }
