// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

// PasswordHasher hashes a plaintext password for storage.
type PasswordHasher func(plain string) (string, error)

// SeedOptions controls the demo data set.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string

	// DemoPassword is shared by every non-admin demo account.
	DemoPassword string

	// Products inserts the demo catalog for sellers that have none.
	Products bool
}

// SeedResult counts what Seed inserted.
type SeedResult struct {
	UsersCreated    int
	UsersSkipped    int
	ProductsCreated int
}

type seedUser struct {
	user     models.User
	products []models.Product
}

func ptr[T any](v T) *T { return &v }

func demoUsers(opts SeedOptions) []seedUser {
	return []seedUser{
		{user: models.User{
			Name: "Merkato Admin", Email: opts.AdminEmail, Phone: "+251911000000",
			Role: models.RoleAdmin, IsApproved: true, IsActive: true,
			Address: &models.Address{City: "Addis Ababa", Region: models.RegionAddisAbaba, Subcity: "Bole"},
		}},
		{
			user: models.User{
				Name: "Tigist Haile", Email: "yirgacheffe@merkato.et", Phone: "+251916111111",
				Role: models.RoleSeller, IsApproved: true, IsActive: true,
				Address: &models.Address{City: "Hawassa", Region: models.RegionSidama},
				Seller:  &models.SellerProfile{BusinessName: "Yirga Coffee Collective", Description: "Washed and natural coffees from Gedeo and Sidama smallholders", TIN: "0012345678"},
			},
			products: []models.Product{
				{Name: "Yirgacheffe Grade 1 Washed Coffee", Description: "Floral and citrus notes, roasted to order", Price: models.NewMoney(850), CompareAtPrice: ptr(models.NewMoney(950)), Stock: 40, Category: models.CategoryCoffee, Region: models.RegionSidama, Unit: "1 kg", Tags: []string{"coffee", "washed", "yirgacheffe"}, IsFeatured: true},
				{Name: "Sidamo Natural Green Beans", Description: "Unroasted beans for home roasters", Price: models.NewMoney(620), Stock: 25, Category: models.CategoryCoffee, Region: models.RegionSidama, Unit: "1 kg", Tags: []string{"coffee", "green", "natural"}},
				{Name: "Clay Jebena", Description: "Hand-formed coffee pot from Sidama potters", Price: models.NewMoney(450), Stock: 12, Category: models.CategoryHandicrafts, Region: models.RegionSidama, Tags: []string{"jebena", "ceremony"}},
				{Name: "Coffee Ceremony Set", Description: "Jebena, six sini cups and a rekebot tray", Price: models.NewMoney(2400), Stock: 4, Category: models.CategoryHome, Region: models.RegionSidama, Tags: []string{"ceremony", "gift"}, IsFeatured: true},
			},
		},
		{
			user: models.User{
				Name: "Alemu Tesfaye", Email: "weaver@merkato.et", Phone: "+251918222222",
				Role: models.RoleSeller, IsApproved: true, IsActive: true,
				Address: &models.Address{City: "Bahir Dar", Region: models.RegionAmhara},
				Seller:  &models.SellerProfile{BusinessName: "Gondar Weavers", Description: "Handwoven cotton from Amhara"},
			},
			products: []models.Product{
				{Name: "Netela Shawl", Description: "Handwoven white cotton shawl with tibeb border", Price: models.NewMoney(1200), Stock: 18, Category: models.CategoryTextiles, Region: models.RegionAmhara, Tags: []string{"netela", "cotton", "tibeb"}, IsFeatured: true},
				{Name: "Habesha Kemis", Description: "Traditional dress, made to measure", Price: models.NewMoney(5800), Stock: 3, Category: models.CategoryClothing, Region: models.RegionAmhara, Tags: []string{"kemis", "dress"}},
				{Name: "Gabi Blanket", Description: "Thick four-layer cotton gabi", Price: models.NewMoney(1750), Stock: 9, Category: models.CategoryTextiles, Region: models.RegionAmhara, Tags: []string{"gabi", "blanket"}},
			},
		},
		{
			user: models.User{
				Name: "Fatuma Abdi", Email: "spices@merkato.et", Phone: "+251915333333",
				Role: models.RoleSeller, IsApproved: true, IsActive: true,
				Address: &models.Address{City: "Harar", Region: models.RegionHarari},
				Seller:  &models.SellerProfile{BusinessName: "Harar Spice House"},
			},
			products: []models.Product{
				{Name: "Berbere Spice Blend", Description: "Sun-dried chilli with korarima and besobela", Price: models.NewMoney(280), Stock: 60, Category: models.CategorySpices, Region: models.RegionHarari, Unit: "500 g", Tags: []string{"berbere", "chilli"}},
				{Name: "Mitmita", Description: "Fiery bird's eye chilli blend", Price: models.NewMoney(190), Stock: 45, Category: models.CategorySpices, Region: models.RegionHarari, Unit: "250 g", Tags: []string{"mitmita"}},
				{Name: "Harari Basket", Description: "Woven mesob-style wall basket", Price: models.NewMoney(900), Stock: 7, Category: models.CategoryHandicrafts, Region: models.RegionHarari, Tags: []string{"basket", "decor"}},
				{Name: "Teff Flour (White)", Description: "Stone-milled magna teff", Price: models.NewMoney(320), Stock: 80, Category: models.CategoryAgriculture, Region: models.RegionOromia, Unit: "1 kg", Tags: []string{"teff", "injera"}},
				{Name: "Tej Honey", Description: "Raw forest honey for tej brewing", Price: models.NewMoney(540), Stock: 2, Category: models.CategoryFood, Region: models.RegionOromia, Unit: "1 kg", Tags: []string{"honey", "tej"}},
			},
		},
		{user: models.User{
			Name: "Pending Seller", Email: "pending.seller@merkato.et", Phone: "+251919444444",
			Role: models.RoleSeller, IsActive: true,
			Seller: &models.SellerProfile{BusinessName: "Awaiting Approval Crafts"},
		}},
		{user: models.User{
			Name: "Dawit Bekele", Email: "rider@merkato.et", Phone: "+251912555555",
			Role: models.RoleDeliveryAgent, IsApproved: true, IsActive: true,
			Address:  &models.Address{City: "Addis Ababa", Region: models.RegionAddisAbaba},
			Delivery: &models.DeliveryProfile{VehicleType: "motorcycle", LicensePlate: "AA-3-12345", Available: true},
		}},
		{user: models.User{
			Name: "Selam Girma", Email: "customer@merkato.et", Phone: "+251913666666",
			Role: models.RoleCustomer, IsApproved: true, IsActive: true,
			Address: &models.Address{Street: "Africa Avenue", Subcity: "Bole", Woreda: "03", City: "Addis Ababa", Region: models.RegionAddisAbaba},
		}},
	}
}

// Seed inserts the demo accounts and catalog. Accounts whose email already
// exists are left untouched, so running it twice is harmless.
func Seed(ctx context.Context, st *store.Store, hash PasswordHasher, opts SeedOptions) (*SeedResult, error) {
	if opts.AdminEmail == "" {
		opts.AdminEmail = "admin@merkato.et"
	}
	if opts.AdminPassword == "" || opts.DemoPassword == "" {
		return nil, errors.New("seed passwords must not be empty")
	}

	res := &SeedResult{}
	now := time.Now().UTC()

	for _, su := range demoUsers(opts) {
		u := su.user
		existing, err := st.Users.GetByEmail(ctx, u.Email)
		switch {
		case err == nil:
			res.UsersSkipped++
			u = *existing
		case errors.Is(err, store.ErrNotFound):
			password := opts.DemoPassword
			if u.Role == models.RoleAdmin {
				password = opts.AdminPassword
			}
			if u.PasswordHash, err = hash(password); err != nil {
				return res, fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
			u.CreatedAt, u.UpdatedAt = now, now
			if err := st.Users.Create(ctx, &u); err != nil {
				return res, fmt.Errorf("create %s: %w", u.Email, err)
			}
			res.UsersCreated++
		default:
			return res, fmt.Errorf("lookup %s: %w", u.Email, err)
		}

		if !opts.Products || len(su.products) == 0 {
			continue
		}
		sellerID := u.ID
		n, err := st.Products.Count(ctx, store.ProductFilter{SellerID: &sellerID, IncludeInactive: true})
		if err != nil {
			return res, err
		}
		if n > 0 {
			continue
		}
		for i, p := range su.products {
			p.SellerID = u.ID
			p.SellerName = u.DisplayName()
			p.IsActive = true
			p.Images = []string{fmt.Sprintf("/images/products/%s-%d.jpg", u.ID.Hex()[18:], i+1)}
			// Spread creation times so "newest" sorting is deterministic.
			p.CreatedAt = now.Add(-time.Duration(len(su.products)-i) * time.Minute)
			p.UpdatedAt = p.CreatedAt
			if err := st.Products.Create(ctx, &p); err != nil {
				return res, fmt.Errorf("create product %q: %w", p.Name, err)
			}
			res.ProductsCreated++
		}
	}

	logging.Info().
		Int("users_created", res.UsersCreated).
		Int("users_skipped", res.UsersSkipped).
		Int("products_created", res.ProductsCreated).
		Msg("Seed complete")
	return res, nil
}
