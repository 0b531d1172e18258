// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package auth

import (
	"context"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/models"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	userContextKey   contextKey = "user"
)

// WithIdentity stores the verified claims and the loaded account on ctx.
// u may be nil when no user lookup is configured.
func WithIdentity(ctx context.Context, claims *Claims, u *models.User) context.Context {
	ctx = context.WithValue(ctx, claimsContextKey, claims)
	if u != nil {
		ctx = context.WithValue(ctx, userContextKey, u)
	}
	return logging.ContextWithUserID(ctx, claims.UserID)
}

// ClaimsFromContext returns the claims set by Authenticate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*Claims)
	return c, ok && c != nil
}

// UserFromContext returns the account loaded by Authenticate.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userContextKey).(*models.User)
	return u, ok && u != nil
}

// RoleFromContext returns the caller's role, or "" for anonymous requests.
func RoleFromContext(ctx context.Context) models.Role {
	if u, ok := UserFromContext(ctx); ok {
		return u.Role
	}
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Role
	}
	return ""
}
