// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/memstore"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

// countingRepo counts GetByID calls that reach the backing repository.
type countingRepo struct {
	store.ProductRepository
	reads int
}

func (r *countingRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.reads++
	return r.ProductRepository.GetByID(ctx, id)
}

func setupCachedRepo(t *testing.T) (store.ProductRepository, *countingRepo, *MemoryProductCache, *models.Product) {
	t.Helper()
	st := memstore.NewStore()
	ctx := context.Background()
	p := &models.Product{
		Name:     "Yirgacheffe coffee 1kg",
		Price:    models.NewMoney(650),
		Stock:    10,
		Category: models.Categories[0],
		SellerID: primitive.NewObjectID(),
		IsActive: true,
	}
	if err := st.Products.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	counting := &countingRepo{ProductRepository: st.Products}
	c := NewMemoryProductCache(100, time.Minute)
	return WrapProducts(counting, c), counting, c, p
}

func TestWrapProductsReadThrough(t *testing.T) {
	repo, counting, _, p := setupCachedRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := repo.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Name != p.Name {
			t.Errorf("Name = %q", got.Name)
		}
	}
	if counting.reads != 1 {
		t.Errorf("backing reads = %d, want 1", counting.reads)
	}
}

func TestWrapProductsCachesNotFound(t *testing.T) {
	repo, counting, _, _ := setupCachedRepo(t)
	ctx := context.Background()
	missing := primitive.NewObjectID()

	for i := 0; i < 2; i++ {
		if _, err := repo.GetByID(ctx, missing); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("GetByID(missing) err = %v", err)
		}
	}
	if counting.reads != 1 {
		t.Errorf("backing reads = %d, want 1", counting.reads)
	}
}

func TestWrapProductsInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		write func(repo store.ProductRepository, p *models.Product) error
		check func(t *testing.T, got *models.Product)
	}{
		{
			"update",
			func(repo store.ProductRepository, p *models.Product) error {
				name := "Sidamo coffee 1kg"
				_, err := repo.Update(ctx, p.ID, store.ProductChanges{Name: &name})
				return err
			},
			func(t *testing.T, got *models.Product) {
				if got.Name != "Sidamo coffee 1kg" {
					t.Errorf("Name = %q, want updated", got.Name)
				}
			},
		},
		{
			"decrement stock",
			func(repo store.ProductRepository, p *models.Product) error {
				_, err := repo.DecrementStock(ctx, p.ID, 4)
				return err
			},
			func(t *testing.T, got *models.Product) {
				if got.Stock != 6 {
					t.Errorf("Stock = %d, want 6", got.Stock)
				}
			},
		},
		{
			"rating",
			func(repo store.ProductRepository, p *models.Product) error {
				return repo.SetRating(ctx, p.ID, models.Rating{Average: 4.5, Count: 2})
			},
			func(t *testing.T, got *models.Product) {
				if got.Rating.Count != 2 {
					t.Errorf("Rating = %+v", got.Rating)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, c, p := setupCachedRepo(t)
			if _, err := repo.GetByID(ctx, p.ID); err != nil {
				t.Fatal(err)
			}
			if c.Len() != 1 {
				t.Fatalf("expected warm cache, Len() = %d", c.Len())
			}
			if err := tt.write(repo, p); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, hit := c.Get(ctx, p.ID); hit {
				t.Fatal("entry should be evicted after write")
			}
			got, err := repo.GetByID(ctx, p.ID)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, got)
		})
	}
}

func TestWrapProductsDeleteThenMiss(t *testing.T) {
	repo, _, _, p := setupCachedRepo(t)
	ctx := context.Background()
	if _, err := repo.GetByID(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetByID(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestMemoryProductCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryProductCache(10, time.Minute)
	p := &models.Product{ID: primitive.NewObjectID(), Name: "Teff flour"}
	c.Set(ctx, p)
	p.Name = "mutated"

	got, hit := c.Get(ctx, p.ID)
	if !hit || got.Name != "Teff flour" {
		t.Fatalf("Get = %+v, %v", got, hit)
	}
	got.Name = "mutated again"
	again, _ := c.Get(ctx, p.ID)
	if again.Name != "Teff flour" {
		t.Error("cache entry shared with caller")
	}
}

func TestWrapProductsNilCache(t *testing.T) {
	st := memstore.NewStore()
	if WrapProducts(st.Products, nil) != st.Products {
		t.Error("nil cache should return the repository unchanged")
	}
}
