// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

const (
	productCacheType = "product"
	redisKeyPrefix   = "merkato:product:"
	notFoundMarker   = "notfound"

	// missingTTL bounds how long a not-found result is remembered.
	missingTTL = 30 * time.Second
)

// ProductCache stores product snapshots by ID.
//
// Get returns hit=false when nothing is cached. A hit with a nil product
// means the product is known not to exist.
type ProductCache interface {
	Get(ctx context.Context, id primitive.ObjectID) (p *models.Product, hit bool)
	Set(ctx context.Context, p *models.Product)
	SetMissing(ctx context.Context, id primitive.ObjectID)
	Delete(ctx context.Context, id primitive.ObjectID)
}

// ===================================================================================================
// In-process cache
// ===================================================================================================

// MemoryProductCache keeps products in an LRU.
type MemoryProductCache struct {
	lru *LRU[*models.Product]
}

// NewMemoryProductCache creates a cache of the given capacity and TTL.
func NewMemoryProductCache(capacity int, ttl time.Duration) *MemoryProductCache {
	return &MemoryProductCache{lru: NewLRU[*models.Product](capacity, ttl)}
}

func (c *MemoryProductCache) Get(_ context.Context, id primitive.ObjectID) (*models.Product, bool) {
	p, ok := c.lru.Get(id.Hex())
	if !ok {
		return nil, false
	}
	if p == nil {
		return nil, true
	}
	cp := *p
	return &cp, true
}

func (c *MemoryProductCache) Set(_ context.Context, p *models.Product) {
	if p == nil {
		return
	}
	cp := *p
	c.lru.Set(p.ID.Hex(), &cp)
}

func (c *MemoryProductCache) SetMissing(_ context.Context, id primitive.ObjectID) {
	c.lru.SetWithTTL(id.Hex(), nil, missingTTL)
}

func (c *MemoryProductCache) Delete(_ context.Context, id primitive.ObjectID) {
	c.lru.Delete(id.Hex())
}

// Len returns the number of cached entries.
func (c *MemoryProductCache) Len() int { return c.lru.Len() }

// CleanupExpired drops expired entries. The supervisor calls it on a timer.
func (c *MemoryProductCache) CleanupExpired() int { return c.lru.CleanupExpired() }

// ===================================================================================================
// Redis cache
// ===================================================================================================

// RedisProductCache shares cached products across replicas. Redis errors
// are logged and treated as misses so an unavailable cache never fails a
// request.
type RedisProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisProductCache wraps a connected client.
func NewRedisProductCache(rdb *redis.Client, ttl time.Duration) *RedisProductCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisProductCache{rdb: rdb, ttl: ttl}
}

func redisKey(id primitive.ObjectID) string {
	return redisKeyPrefix + id.Hex()
}

func (c *RedisProductCache) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, bool) {
	raw, err := c.rdb.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Ctx(ctx).Warn().Err(err).Str("product_id", id.Hex()).Msg("Product cache read failed")
		}
		return nil, false
	}
	if string(raw) == notFoundMarker {
		return nil, true
	}
	var p models.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("product_id", id.Hex()).Msg("Discarding undecodable cached product")
		c.Delete(ctx, id)
		return nil, false
	}
	return &p, true
}

func (c *RedisProductCache) Set(ctx context.Context, p *models.Product) {
	if p == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Product cache encode failed")
		return
	}
	if err := c.rdb.Set(ctx, redisKey(p.ID), raw, c.ttl).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("product_id", p.ID.Hex()).Msg("Product cache write failed")
	}
}

func (c *RedisProductCache) SetMissing(ctx context.Context, id primitive.ObjectID) {
	if err := c.rdb.Set(ctx, redisKey(id), notFoundMarker, missingTTL).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("product_id", id.Hex()).Msg("Product cache write failed")
	}
}

func (c *RedisProductCache) Delete(ctx context.Context, id primitive.ObjectID) {
	if err := c.rdb.Del(ctx, redisKey(id)).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("product_id", id.Hex()).Msg("Product cache delete failed")
	}
}

// ===================================================================================================
// Read-through repository
// ===================================================================================================

type cachedProducts struct {
	store.ProductRepository
	cache ProductCache
}

// WrapProducts returns repo with GetByID served from c. Writes go straight
// to repo and then evict the product. A nil cache returns repo unchanged.
func WrapProducts(repo store.ProductRepository, c ProductCache) store.ProductRepository {
	if c == nil {
		return repo
	}
	return &cachedProducts{ProductRepository: repo, cache: c}
}

func (r *cachedProducts) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	if p, hit := r.cache.Get(ctx, id); hit {
		metrics.RecordCacheLookup(productCacheType, true)
		if p == nil {
			return nil, store.ErrNotFound
		}
		return p, nil
	}
	metrics.RecordCacheLookup(productCacheType, false)

	p, err := r.ProductRepository.GetByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.cache.SetMissing(ctx, id)
		return nil, err
	case err != nil:
		return nil, err
	}
	r.cache.Set(ctx, p)
	return p, nil
}

func (r *cachedProducts) Create(ctx context.Context, p *models.Product) error {
	if err := r.ProductRepository.Create(ctx, p); err != nil {
		return err
	}
	r.cache.Delete(ctx, p.ID)
	return nil
}

func (r *cachedProducts) Update(ctx context.Context, id primitive.ObjectID, c store.ProductChanges) (*models.Product, error) {
	p, err := r.ProductRepository.Update(ctx, id, c)
	r.cache.Delete(ctx, id)
	return p, err
}

func (r *cachedProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	err := r.ProductRepository.Delete(ctx, id)
	r.cache.Delete(ctx, id)
	return err
}

func (r *cachedProducts) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (*models.Product, error) {
	p, err := r.ProductRepository.DecrementStock(ctx, id, qty)
	r.cache.Delete(ctx, id)
	return p, err
}

func (r *cachedProducts) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	err := r.ProductRepository.IncrementStock(ctx, id, qty)
	r.cache.Delete(ctx, id)
	return err
}

func (r *cachedProducts) SetRating(ctx context.Context, id primitive.ObjectID, rating models.Rating) error {
	err := r.ProductRepository.SetRating(ctx, id, rating)
	r.cache.Delete(ctx, id)
	return err
}
