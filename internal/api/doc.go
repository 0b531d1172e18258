// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package api provides the HTTP REST API layer for Merkato.

Handlers are thin: they decode and validate the request, call one method
of internal/service with the authenticated user as the actor, and write
the response envelope from internal/response. Business rules live in the
service layer.

Route groups (all under /api):

  - /auth: register, login, logout, refresh, current user
  - /products: public catalog, reviews, seller product management
  - /orders: checkout, role-aware listing, status changes, tracking
  - /delivery: delivery agent queue, claims, status updates, availability
  - /admin: users, products, orders, bulk email, audit trail, dashboards
  - /users: profile, password, cart, wishlist, notifications, dashboards,
    public seller profiles

Operational endpoints live at the root: /health, /health/ready, /metrics,
/swagger/ and the /ws websocket.

Middleware stack:

Global middleware runs in this order: request ID, panic recovery, CORS,
gzip compression, request logging with the performance window, Prometheus
metrics and the per-IP sliding-window rate limiter. Route groups add the
stricter httprate limits (login and registration, writes), token
authentication, role checks and Casbin authorization.

Errors:

Every failure is answered with {"success": false, "message": "..."}.
Validation failures are HTTP 400 and also carry "errors": [...] with one
message per failing field. Service error kinds are mapped to status codes
in errors.go.
*/
package api
