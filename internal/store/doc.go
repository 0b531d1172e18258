// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package store defines the persistence contracts used by the service layer.

Two implementations exist:

  - internal/database: MongoDB, used in every deployed environment
  - internal/memstore: process-local maps, used by tests and by the server
    when database.backend is "memory"

Both return the sentinel errors declared here so callers can branch with
errors.Is without knowing which backend is active.

# Stock

ProductRepository.DecrementStock is a conditional update that only succeeds
while stock >= qty. Order placement decrements each line in turn and calls
IncrementStock on the lines already taken if a later line fails.

# Order status

OrderRepository.UpdateStatus only applies when the stored status still
equals StatusChange.From. A concurrent writer that moved the order first
causes ErrConflict rather than a lost update.
*/
package store
