// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/response"
	"github.com/tomtom215/merkato/internal/store"
)

// TokenCookie is the cookie name checked when no Authorization header is sent.
const TokenCookie = "token"

// ErrAccountInactive means the token is valid but the account was deactivated.
var ErrAccountInactive = errors.New("account is deactivated")

// UserLoader loads the account behind a token.
type UserLoader func(ctx context.Context, id primitive.ObjectID) (*models.User, error)

// Authenticator verifies tokens on incoming requests.
type Authenticator struct {
	tokens  *TokenManager
	revoked *RevocationStore
	users   UserLoader
}

// NewAuthenticator builds an Authenticator. revoked and users may be nil.
func NewAuthenticator(tokens *TokenManager, revoked *RevocationStore, users UserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, revoked: revoked, users: users}
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the token cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// Verify checks a raw token and loads its account. It is used by the
// middleware and by the websocket endpoint, which receives the token as a
// query parameter.
func (a *Authenticator) Verify(ctx context.Context, token string) (*Claims, *models.User, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	if a.revoked != nil {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, err
		}
		if revoked {
			return nil, nil, ErrTokenRevoked
		}
	}
	if a.users == nil {
		return claims, nil, nil
	}

	id, err := claims.ObjectID()
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	u, err := a.users(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !u.IsActive {
		return nil, nil, ErrAccountInactive
	}
	return claims, u, nil
}

// Authenticate rejects requests without a valid, unrevoked token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			response.Error(w, r, http.StatusUnauthorized, "Not authorized, no token")
			return
		}
		claims, u, err := a.Verify(r.Context(), token)
		if err != nil {
			a.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims, u)))
	})
}

// Optional attaches the caller's identity when a valid token is present
// and otherwise serves the request anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := TokenFromRequest(r); token != "" {
			if claims, u, err := a.Verify(r.Context(), token); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), claims, u))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAccountInactive):
		response.Error(w, r, http.StatusForbidden, "Your account has been deactivated")
	case errors.Is(err, ErrTokenRevoked):
		response.Error(w, r, http.StatusUnauthorized, "Token has been revoked, please log in again")
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrMissingToken):
		response.Error(w, r, http.StatusUnauthorized, "Not authorized, token failed")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Token verification failed")
		response.Error(w, r, http.StatusInternalServerError, "Authentication unavailable")
	}
}

// RequireRole allows only the listed roles. Admins always pass. It must be
// mounted after Authenticate.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" {
				response.Error(w, r, http.StatusUnauthorized, "Not authorized, no token")
				return
			}
			if role != models.RoleAdmin && !allowed[role] {
				response.Error(w, r, http.StatusForbidden, "User role '"+string(role)+"' is not authorized to access this route")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireApproved rejects sellers and delivery agents that an admin has not
// approved yet.
func RequireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if ok && u.Role.RequiresApproval() && !u.IsApproved {
			response.Error(w, r, http.StatusForbidden, "Your account is pending approval")
			return
		}
		next.ServeHTTP(w, r)
	})
}
