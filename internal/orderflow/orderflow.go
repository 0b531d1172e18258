// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

// Package orderflow owns the order-status state machine.
//
// Every status change in the system goes through Validate. The transition
// table below is the only place that knows which moves are legal, and the
// permission table the only place that knows which role may make them.
//
//	pending -> accepted -> preparing -> ready_for_pickup -> dispatched -> in_transit -> delivered
//	   \__________\____________\______________\________________\_____________\-----> cancelled
//
// delivered and cancelled are terminal.
package orderflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/merkato/internal/models"
)

var (
	// ErrUnknownStatus is returned for strings that are not an order status.
	ErrUnknownStatus = errors.New("unknown order status")

	// ErrInvalidTransition means the move is not in the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotPermitted means the move is legal but not for this role.
	ErrNotPermitted = errors.New("status transition not permitted for role")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
	Role models.Role
	Err  error
}

func (e *TransitionError) Error() string {
	if errors.Is(e.Err, ErrNotPermitted) {
		return fmt.Sprintf("%s cannot change order status from %s to %s", roleLabel(e.Role), e.From, e.To)
	}
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return e.Err }

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:        {models.StatusAccepted, models.StatusCancelled},
	models.StatusAccepted:       {models.StatusPreparing, models.StatusCancelled},
	models.StatusPreparing:      {models.StatusReadyForPickup, models.StatusCancelled},
	models.StatusReadyForPickup: {models.StatusDispatched, models.StatusCancelled},
	models.StatusDispatched:     {models.StatusInTransit, models.StatusCancelled},
	models.StatusInTransit:      {models.StatusDelivered, models.StatusCancelled},
	models.StatusDelivered:      nil,
	models.StatusCancelled:      nil,
}

type move struct {
	from, to models.OrderStatus
}

// permissions lists the moves each non-admin role may make. Admins may
// make every legal move.
var permissions = map[models.Role]map[move]bool{
	models.RoleCustomer: {
		{models.StatusPending, models.StatusCancelled}:  true,
		{models.StatusAccepted, models.StatusCancelled}: true,
	},
	models.RoleSeller: {
		{models.StatusPending, models.StatusAccepted}:         true,
		{models.StatusAccepted, models.StatusPreparing}:       true,
		{models.StatusPreparing, models.StatusReadyForPickup}: true,
		{models.StatusPending, models.StatusCancelled}:        true,
		{models.StatusAccepted, models.StatusCancelled}:       true,
		{models.StatusPreparing, models.StatusCancelled}:      true,
	},
	models.RoleDeliveryAgent: {
		{models.StatusReadyForPickup, models.StatusDispatched}: true,
		{models.StatusDispatched, models.StatusInTransit}:      true,
		{models.StatusInTransit, models.StatusDelivered}:       true,
	},
}

// Parse converts a client-supplied string into a status.
func Parse(s string) (models.OrderStatus, error) {
	st := models.OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !Valid(st) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func Valid(s models.OrderStatus) bool { return s.Valid() }

// Terminal reports whether no transition leaves s.
func Terminal(s models.OrderStatus) bool { return s.Terminal() }

// Next returns the legal successors of s.
func Next(s models.OrderStatus) []models.OrderStatus {
	next := transitions[s]
	out := make([]models.OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to models.OrderStatus) bool {
	for _, n := range transitions[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Permitted reports whether role may perform a legal move.
func Permitted(role models.Role, from, to models.OrderStatus) bool {
	if role == models.RoleAdmin {
		return true
	}
	return permissions[role][move{from, to}]
}

// Validate is the single authoritative check for a status change requested
// by a user of the given role. It returns nil or a *TransitionError that
// unwraps to ErrUnknownStatus, ErrInvalidTransition or ErrNotPermitted.
func Validate(from, to models.OrderStatus, role models.Role) error {
	if !Valid(from) || !Valid(to) {
		return &TransitionError{From: from, To: to, Role: role, Err: ErrUnknownStatus}
	}
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to, Role: role, Err: ErrInvalidTransition}
	}
	if !Permitted(role, from, to) {
		return &TransitionError{From: from, To: to, Role: role, Err: ErrNotPermitted}
	}
	return nil
}

// AllowedFor returns the successors of from that role may request, in
// table order. Clients use it to decide which action buttons to show.
func AllowedFor(from models.OrderStatus, role models.Role) []models.OrderStatus {
	out := []models.OrderStatus{}
	for _, to := range transitions[from] {
		if Permitted(role, from, to) {
			out = append(out, to)
		}
	}
	return out
}

// Cancellable reports whether role may cancel an order in status s.
func Cancellable(s models.OrderStatus, role models.Role) bool {
	return Validate(s, models.StatusCancelled, role) == nil
}

func roleLabel(r models.Role) string {
	if r == "" {
		return "unknown role"
	}
	return strings.ReplaceAll(string(r), "_", " ")
}
