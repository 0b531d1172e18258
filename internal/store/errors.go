// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package store

import "errors"

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate resource")

	// ErrInsufficientStock is returned by DecrementStock when the product
	// has fewer units than requested.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict is returned when a conditional update lost a race.
	ErrConflict = errors.New("resource was modified concurrently")
)
