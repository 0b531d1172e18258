// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/response"
	ws "github.com/tomtom215/merkato/internal/websocket"
)

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts configured CORS origins only. Browsers
// always send Origin, so a missing header is rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and truncates so a header
// value cannot forge log lines.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

// WebSocket handles WebSocket connections
//
// The token is read from the token query parameter, since browsers cannot
// set headers on upgrade requests, then from the usual header and cookie.
//
// @Summary Realtime notifications
// @Description Upgrades to a WebSocket that receives the user's notifications as they are created.
// @Tags Realtime
// @Param token query string false "Access token"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /ws [get]
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		response.Error(w, r, http.StatusServiceUnavailable, "Realtime notifications are unavailable")
		return
	}

	if h.upgrades != nil && !h.upgrades.Allow(h.ips.ClientIP(r)) {
		response.TooManyRequests(w, r, time.Second)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.TokenFromRequest(r)
	}
	if token == "" {
		response.Error(w, r, http.StatusUnauthorized, "Not authorized, no token")
		return
	}
	claims, user, err := h.authn.Verify(r.Context(), token)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "Not authorized, token failed")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}

	userID := claims.UserID
	if user != nil {
		userID = user.ID.Hex()
	}
	client := ws.NewClient(h.wsHub, conn, userID)
	h.wsHub.Register <- client
	client.Start()
}
