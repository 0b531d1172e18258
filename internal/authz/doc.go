// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package authz decides which roles may use which route groups.

Authorization is RBAC with Casbin. Subjects are roles, objects are route
groups (products, orders, cart, wishlist, admin, delivery, users,
analytics, reviews, notifications) and actions are read, write and delete,
derived from the HTTP method:

	GET, HEAD, OPTIONS  -> read
	POST, PUT, PATCH    -> write
	DELETE              -> delete

The model and policy are embedded (model.conf, policy.csv). Admin inherits
every other role through grouping rules. Either file can be replaced at
runtime through CasbinConfig paths; a file policy is reloaded every 30
seconds.

Decisions are cached per (role, object, action) for CacheTTL. Ownership
checks ("is this my order?") are not policy questions and live in the
service layer.
*/
package authz
