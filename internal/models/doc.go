// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package models defines the marketplace records shared by the store, service
and API layers.

Records carry both bson and json tags. Identifiers are MongoDB ObjectIDs
even when the in-memory store is used, so IDs look the same in every
deployment. Monetary amounts use Money, a fixed-point decimal stored as
BSON Decimal128 and rendered in JSON as a string ("1250.00").

Key types:

  - User: account with a Role (customer, seller, delivery_agent, admin),
    approval and active flags, optional seller and delivery profiles
  - Product: catalog entry owned by a seller
  - Order: line items, totals, OrderStatus and the append-only tracking log
  - Cart and Wishlist: per-user snapshots of product fields
  - Review and Notification

Order status rules (legal transitions, who may perform them) live in the
orderflow package, not here.
*/
package models
