// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package database implements the store repositories on MongoDB.

Collections:

	users          accounts of every role
	products       catalog
	orders         orders with embedded line items and tracking log
	carts          one document per user
	wishlists      one document per user
	reviews        product reviews, unique per (product, customer)
	notifications  in-app notifications

Money fields are stored as Decimal128 (see models.Money). Indexes are
created by EnsureIndexes, which the server runs on startup when
database.ensure_indexes is set and cmd/seed always runs.

Stock and order status changes use single-document conditional updates
(FindOneAndUpdate with the precondition in the filter), so no multi-document
transaction or replica set is required.
*/
package database
