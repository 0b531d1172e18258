// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/testinfra"
)

func TestRedisProductCacheIntegration(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	container, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	testinfra.CleanupContainer(t, container)

	rdb, err := NewRedisClient(ctx, &config.RedisConfig{Addr: container.Addr})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewRedisProductCache(rdb, time.Minute)
	p := &models.Product{ID: primitive.NewObjectID(), Name: "Berbere", Price: models.NewMoney(180), Stock: 12}

	if _, ok := c.Get(ctx, p.ID); ok {
		t.Fatal("Get on empty cache hit")
	}
	c.Set(ctx, p)
	got, ok := c.Get(ctx, p.ID)
	if !ok || got == nil || got.Name != "Berbere" || !got.Price.Equal(p.Price) {
		t.Fatalf("Get = %+v, %v", got, ok)
	}

	c.Delete(ctx, p.ID)
	if _, ok := c.Get(ctx, p.ID); ok {
		t.Error("Get after Delete hit")
	}

	missing := primitive.NewObjectID()
	c.SetMissing(ctx, missing)
	got, ok = c.Get(ctx, missing)
	if !ok || got != nil {
		t.Errorf("negative entry = %+v, %v", got, ok)
	}
}
