// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package authz

import (
	"net/http"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/response"
)

// Route groups used as Casbin objects.
const (
	ObjectProducts      = "products"
	ObjectReviews       = "reviews"
	ObjectOrders        = "orders"
	ObjectCart          = "cart"
	ObjectWishlist      = "wishlist"
	ObjectAdmin         = "admin"
	ObjectDelivery      = "delivery"
	ObjectUsers         = "users"
	ObjectAnalytics     = "analytics"
	ObjectNotifications = "notifications"
)

// Actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// ActionFor maps an HTTP method to an action.
func ActionFor(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionWrite
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}

// Authorize guards a route group. The action comes from the request method.
// It must run after auth.Authenticator.Authenticate.
func (e *Enforcer) Authorize(object string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := auth.RoleFromContext(r.Context())
			if role == "" {
				response.Error(w, r, http.StatusUnauthorized, "Not authorized, no token")
				return
			}

			action := ActionFor(r.Method)
			allowed, err := e.Enforce(string(role), object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Str("object", object).Msg("Authorization error")
				response.Error(w, r, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !allowed {
				logging.Ctx(r.Context()).Debug().
					Str("role", string(role)).
					Str("object", object).
					Str("action", action).
					Msg("Access denied")
				response.Error(w, r, http.StatusForbidden, "You do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
