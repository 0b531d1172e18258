// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/middleware"
	"github.com/tomtom215/merkato/internal/service"
	ws "github.com/tomtom215/merkato/internal/websocket"
)

// ReadinessCheck is one dependency probed by /health/ready. A failing
// required check makes the service not ready; an optional one only
// degrades it.
type ReadinessCheck struct {
	Name     string
	Required bool
	Check    func(ctx context.Context) error
}

// HandlerDeps are the collaborators of the handlers. Hub, Upgrades and
// Perf may be nil; the websocket and performance endpoints then answer
// 503.
type HandlerDeps struct {
	Services *service.Services
	Config   *config.Config
	Auth     *auth.Authenticator
	IPs      *auth.IPResolver
	Hub      *ws.Hub
	Upgrades *auth.UpgradeLimiter
	Perf     *middleware.PerformanceMonitor
	Checks   []ReadinessCheck
	Version  string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files by route group:
//   - handlers_auth.go: /auth
//   - handlers_products.go: /products
//   - handlers_orders.go: /orders
//   - handlers_delivery.go: /delivery
//   - handlers_admin.go: /admin
//   - handlers_users.go: /users (profile, cart, wishlist, notifications)
//   - handlers_health.go: health and readiness
//   - handlers_websocket.go: /ws
type Handler struct {
	svc       *service.Services
	config    *config.Config
	authn     *auth.Authenticator
	ips       *auth.IPResolver
	wsHub     *ws.Hub
	upgrades  *auth.UpgradeLimiter
	perfMon   *middleware.PerformanceMonitor
	checks    []ReadinessCheck
	version   string
	startTime time.Time
}

// NewHandler creates the API handler.
func NewHandler(d HandlerDeps) (*Handler, error) {
	if d.Services == nil || d.Config == nil || d.Auth == nil {
		return nil, errors.New("api: services, config and authenticator are required")
	}
	if d.IPs == nil {
		d.IPs = auth.NewIPResolver(d.Config.Security.TrustedProxies)
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	return &Handler{
		svc:       d.Services,
		config:    d.Config,
		authn:     d.Auth,
		ips:       d.IPs,
		wsHub:     d.Hub,
		upgrades:  d.Upgrades,
		perfMon:   d.Perf,
		checks:    d.Checks,
		version:   d.Version,
		startTime: time.Now(),
	}, nil
}
