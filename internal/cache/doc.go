// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package cache provides the product detail cache.

LRU is a generic, TTL-aware least-recently-used cache used in process.
ProductCache abstracts where cached products live:

  - MemoryProductCache: an LRU per process
  - RedisProductCache: shared across replicas, JSON encoded under
    "merkato:product:<hex id>"

WrapProducts decorates a store.ProductRepository so that GetByID reads
through the cache and every write invalidates the product's entry. Stock
changes invalidate too, which keeps "in stock" badges honest at the cost of
a cache miss after each sale.
*/
package cache
