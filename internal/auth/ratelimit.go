// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
	"github.com/tomtom215/merkato/internal/response"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts requests per key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// ===================================================================================================
// In-memory sliding window
// ===================================================================================================

// SlidingWindowLimiter keeps the timestamps of recent requests per key.
// State is lost on restart.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewSlidingWindowLimiter allows limit requests per window per key.
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a request for key if the window has room.
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.hits[key], now.Add(-l.window))
	if len(recent) >= l.limit {
		l.hits[key] = recent
		return Decision{
			Limit:      l.limit,
			RetryAfter: recent[0].Add(l.window).Sub(now),
		}, nil
	}
	recent = append(recent, now)
	l.hits[key] = recent
	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - len(recent)}, nil
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// order, so the survivors are a suffix.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0:0], ts[i:]...)
}

// Cleanup forgets keys with no request inside the window and returns how
// many it removed.
func (l *SlidingWindowLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, ts := range l.hits {
		if len(prune(ts, cutoff)) == 0 {
			delete(l.hits, key)
			removed++
		}
	}
	return removed
}

// Keys returns the number of tracked keys.
func (l *SlidingWindowLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// Serve evicts idle keys once per window until ctx is cancelled.
func (l *SlidingWindowLimiter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				logging.Debug().Int("removed", n).Msg("Rate limiter cleanup")
			}
		}
	}
}

// ===================================================================================================
// Redis sliding window
// ===================================================================================================

// slidingWindowScript prunes, counts and records in one round trip so
// concurrent replicas cannot both take the last slot.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  local retry = window
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, count, retry}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RedisSlidingWindowLimiter stores request timestamps in a sorted set per
// key, scored in milliseconds.
type RedisSlidingWindowLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisSlidingWindowLimiter shares limits across replicas.
func NewRedisSlidingWindowLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisSlidingWindowLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisSlidingWindowLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: "merkato:ratelimit:",
		now:    time.Now,
	}
}

func (l *RedisSlidingWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.rdb,
		[]string{l.prefix + key},
		now, l.window.Milliseconds(), l.limit, strconv.FormatInt(now, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis rate limit: unexpected reply %v", res)
	}
	d := Decision{Limit: l.limit, Allowed: res[0] == 1}
	if d.Allowed {
		d.Remaining = l.limit - int(res[1])
	} else {
		d.RetryAfter = time.Duration(res[2]) * time.Millisecond
	}
	return d, nil
}

// ===================================================================================================
// HTTP middleware
// ===================================================================================================

// RateLimit rejects requests over the limit with 429. Limiter errors are
// logged and the request is let through.
func RateLimit(l RateLimiter, ips *IPResolver, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), ips.ClientIP(r))
			if err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Str("scope", scope).Msg("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				metrics.RecordRateLimitHit(scope)
				response.TooManyRequests(w, r, d.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
