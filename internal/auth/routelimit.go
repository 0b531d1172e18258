// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"

	"github.com/tomtom215/merkato/internal/metrics"
	"github.com/tomtom215/merkato/internal/response"
)

// RouteLimit applies a fixed per-IP limit to a route group, on top of the
// global sliding window. Login and registration use 5 per minute; writes
// use 30 per minute.
func RouteLimit(requests int, window time.Duration, ips *IPResolver, scope string) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return scope + ":" + ips.ClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitHit(scope)
			response.TooManyRequests(w, r, window)
		}),
	)
}

// UpgradeLimiter is a token bucket per client IP for websocket upgrades.
type UpgradeLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*upgradeEntry
	now      func() time.Time
}

type upgradeEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUpgradeLimiter allows perSecond upgrades per IP with the given burst.
func NewUpgradeLimiter(perSecond float64, burst int) *UpgradeLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &UpgradeLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*upgradeEntry),
		now:      time.Now,
	}
}

// Allow consumes one token for ip.
func (u *UpgradeLimiter) Allow(ip string) bool {
	u.mu.Lock()
	e, ok := u.limiters[ip]
	if !ok {
		e = &upgradeEntry{limiter: rate.NewLimiter(u.limit, u.burst)}
		u.limiters[ip] = e
	}
	now := u.now()
	e.lastSeen = now
	u.mu.Unlock()

	if !e.limiter.AllowN(now, 1) {
		metrics.RecordRateLimitHit("websocket")
		return false
	}
	return true
}

// Cleanup drops buckets idle for longer than idle.
func (u *UpgradeLimiter) Cleanup(idle time.Duration) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	cutoff := u.now().Add(-idle)
	removed := 0
	for ip, e := range u.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(u.limiters, ip)
			removed++
		}
	}
	return removed
}
