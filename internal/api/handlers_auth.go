// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/response"
	"github.com/tomtom215/merkato/internal/service"
)

// setTokenCookie mirrors the bearer token into an HttpOnly cookie so
// browser clients do not have to store it.
func (h *Handler) setTokenCookie(w http.ResponseWriter, sess *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.config.Server.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Server.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// Register creates an account and signs it in.
//
// @Summary Register
// @Description Customers are approved at once; sellers and delivery agents wait for an administrator.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body service.RegisterInput true "Account details"
// @Success 201 {object} response.Envelope{data=service.Session}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /api/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	sess, err := h.svc.Auth.Register(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.setTokenCookie(w, sess)
	msg := "Registration successful"
	if !sess.User.IsApproved {
		msg = "Registration successful. Your account is pending approval"
	}
	response.Created(w, msg, sess)
}

// Login signs in with email and password.
//
// @Summary Login
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body service.LoginInput true "Credentials"
// @Success 200 {object} response.Envelope{data=service.Session}
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if !decode(w, r, &in) {
		return
	}
	sess, err := h.svc.Auth.Login(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.setTokenCookie(w, sess)
	response.OKMessage(w, "Login successful", sess)
}

// Logout revokes the presented token.
//
// @Summary Logout
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /api/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	if err := h.svc.Auth.Logout(r.Context(), claims); err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.clearTokenCookie(w)
	response.OKMessage(w, "Logged out", nil)
}

// Refresh exchanges a valid token for a fresh one.
//
// @Summary Refresh token
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=service.Session}
// @Router /api/auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	sess, err := h.svc.Auth.Refresh(r.Context(), claims, currentUser(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.setTokenCookie(w, sess)
	response.OK(w, sess)
}

// Me returns the signed-in account.
//
// @Summary Current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.User}
// @Router /api/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	response.OK(w, currentUser(r))
}
