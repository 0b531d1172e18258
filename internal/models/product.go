// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is the fixed product category enum.
type Category string

const (
	CategoryCoffee      Category = "coffee"
	CategorySpices      Category = "spices"
	CategoryTextiles    Category = "textiles"
	CategoryHandicrafts Category = "handicrafts"
	CategoryJewelry     Category = "jewelry"
	CategoryFood        Category = "food"
	CategoryBeverages   Category = "beverages"
	CategoryClothing    Category = "clothing"
	CategoryElectronics Category = "electronics"
	CategoryHome        Category = "home"
	CategoryBeauty      Category = "beauty"
	CategoryBooks       Category = "books"
	CategoryAgriculture Category = "agriculture"
	CategoryOther       Category = "other"
)

// Categories lists every category in storefront order.
var Categories = []Category{
	CategoryCoffee, CategorySpices, CategoryTextiles, CategoryHandicrafts,
	CategoryJewelry, CategoryFood, CategoryBeverages, CategoryClothing,
	CategoryElectronics, CategoryHome, CategoryBeauty, CategoryBooks,
	CategoryAgriculture, CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Region is an Ethiopian regional state or chartered city.
type Region string

const (
	RegionAddisAbaba        Region = "addis_ababa"
	RegionAfar              Region = "afar"
	RegionAmhara            Region = "amhara"
	RegionBenishangulGumuz  Region = "benishangul_gumuz"
	RegionCentralEthiopia   Region = "central_ethiopia"
	RegionDireDawa          Region = "dire_dawa"
	RegionGambela           Region = "gambela"
	RegionHarari            Region = "harari"
	RegionOromia            Region = "oromia"
	RegionSidama            Region = "sidama"
	RegionSomali            Region = "somali"
	RegionSouthEthiopia     Region = "south_ethiopia"
	RegionSouthWestEthiopia Region = "south_west_ethiopia"
	RegionTigray            Region = "tigray"
)

// Regions lists every region alphabetically.
var Regions = []Region{
	RegionAddisAbaba, RegionAfar, RegionAmhara, RegionBenishangulGumuz,
	RegionCentralEthiopia, RegionDireDawa, RegionGambela, RegionHarari,
	RegionOromia, RegionSidama, RegionSomali, RegionSouthEthiopia,
	RegionSouthWestEthiopia, RegionTigray,
}

func (r Region) Valid() bool {
	for _, known := range Regions {
		if r == known {
			return true
		}
	}
	return false
}

// Product is a catalog entry owned by one seller.
type Product struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Description    string             `bson:"description" json:"description"`
	Price          Money              `bson:"price" json:"price"`
	CompareAtPrice *Money             `bson:"compareAtPrice,omitempty" json:"compareAtPrice,omitempty"`
	Stock          int                `bson:"stock" json:"stock"`
	Category       Category           `bson:"category" json:"category"`
	Region         Region             `bson:"region,omitempty" json:"region,omitempty"`
	Images         []string           `bson:"images" json:"images"`
	Tags           []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Unit           string             `bson:"unit,omitempty" json:"unit,omitempty"`

	SellerID   primitive.ObjectID `bson:"seller" json:"sellerId"`
	SellerName string             `bson:"sellerName" json:"sellerName"`

	Rating    Rating `bson:"rating" json:"rating"`
	SoldCount int    `bson:"soldCount" json:"soldCount"`

	IsActive   bool `bson:"isActive" json:"isActive"`
	IsFeatured bool `bson:"isFeatured" json:"isFeatured"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// InStock reports whether at least qty units are available.
func (p *Product) InStock(qty int) bool {
	return qty > 0 && p.Stock >= qty
}

// PrimaryImage returns the first image or an empty string.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CategoryCount is one row of the category listing.
type CategoryCount struct {
	Category Category `bson:"_id" json:"category"`
	Count    int      `bson:"count" json:"count"`
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
