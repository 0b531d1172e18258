// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/config"
)

// ChiMiddlewareConfig holds configuration for the Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// RateLimitDisabled turns off the global sliding window and the route
	// group limits.
	RateLimitDisabled bool

	// Login and registration.
	AuthRequests int
	AuthWindow   time.Duration

	// POST, PUT, PATCH and DELETE across the API.
	WriteRequests int
	WriteWindow   time.Duration
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Correlation-ID"},
		CORSExposedHeaders: []string{"X-Request-ID", "X-Correlation-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		CORSMaxAge:         86400,

		AuthRequests:  5,
		AuthWindow:    time.Minute,
		WriteRequests: 30,
		WriteWindow:   time.Minute,
	}
}

// ChiMiddlewareConfigFrom applies the security section to the defaults.
// Credentials are only allowed with an explicit origin list because
// browsers refuse them with a wildcard.
func ChiMiddlewareConfigFrom(sec *config.SecurityConfig) *ChiMiddlewareConfig {
	c := DefaultChiMiddlewareConfig()
	c.CORSAllowedOrigins = append(c.CORSAllowedOrigins, sec.CORSOrigins...)
	c.CORSAllowCredentials = len(sec.CORSOrigins) > 0
	for _, o := range sec.CORSOrigins {
		if o == "*" {
			c.CORSAllowCredentials = false
		}
	}
	c.RateLimitDisabled = sec.RateLimitDisabled
	return c
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config  *ChiMiddlewareConfig
	cors    func(http.Handler) http.Handler
	ips     *auth.IPResolver
	limiter auth.RateLimiter
}

// NewChiMiddleware creates the factory. limiter backs the global per-IP
// sliding window and may be nil to skip it.
func NewChiMiddleware(config *ChiMiddlewareConfig, ips *auth.IPResolver, limiter auth.RateLimiter) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}
	if ips == nil {
		ips = auth.NewIPResolver(nil)
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   config.CORSExposedHeaders,
		AllowCredentials: config.CORSAllowCredentials,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config:  config,
		cors:    corsHandler,
		ips:     ips,
		limiter: limiter,
	}
}

// CORS returns the go-chi/cors handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

func passthrough(next http.Handler) http.Handler { return next }

// RateLimit is the global per-IP sliding window.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled || m.limiter == nil {
		return passthrough
	}
	return auth.RateLimit(m.limiter, m.ips, "global")
}

// RateLimitAuth is the strict limit for login and registration.
func (m *ChiMiddleware) RateLimitAuth() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return passthrough
	}
	return auth.RouteLimit(m.config.AuthRequests, m.config.AuthWindow, m.ips, "auth")
}

// RateLimitWrites limits mutating requests. Reads pass through.
func (m *ChiMiddleware) RateLimitWrites() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return passthrough
	}
	limit := auth.RouteLimit(m.config.WriteRequests, m.config.WriteWindow, m.ips, "writes")
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}

// APISecurityHeaders sets the headers every JSON response carries.
func APISecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
