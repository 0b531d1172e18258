// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package database

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

type productRepo struct {
	coll *mongo.Collection
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *productRepo) Update(ctx context.Context, id primitive.ObjectID, c store.ProductChanges) (*models.Product, error) {
	set := productSet(c)
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}
	var p models.Product
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, returnAfter()).Decode(&p); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

// productSet maps c onto a $set document keyed by the bson field names.
func productSet(c store.ProductChanges) bson.M {
	set := bson.M{}
	if c.Name != nil {
		set["name"] = *c.Name
	}
	if c.Description != nil {
		set["description"] = *c.Description
	}
	if c.Price != nil {
		set["price"] = *c.Price
	}
	if c.CompareAtPrice != nil {
		set["compareAtPrice"] = *c.CompareAtPrice
	}
	if c.Stock != nil {
		set["stock"] = *c.Stock
	}
	if c.Category != nil {
		set["category"] = *c.Category
	}
	if c.Region != nil {
		set["region"] = *c.Region
	}
	if c.Images != nil {
		set["images"] = c.Images
	}
	if c.Tags != nil {
		set["tags"] = c.Tags
	}
	if c.Unit != nil {
		set["unit"] = *c.Unit
	}
	if c.IsActive != nil {
		set["isActive"] = *c.IsActive
	}
	if c.IsFeatured != nil {
		set["isFeatured"] = *c.IsFeatured
	}
	if !c.UpdatedAt.IsZero() {
		set["updatedAt"] = c.UpdatedAt
	}
	return set
}

func (r *productRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func productQuery(f store.ProductFilter) bson.M {
	q := bson.M{}
	if !f.IncludeInactive {
		q["isActive"] = true
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Region != "" {
		q["region"] = f.Region
	}

	seller := bson.M{}
	if f.SellerID != nil {
		seller["$eq"] = *f.SellerID
	}
	if len(f.ExcludeSellers) > 0 {
		seller["$nin"] = f.ExcludeSellers
	}
	if len(seller) > 0 {
		q["seller"] = seller
	}

	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		q["price"] = price
	}

	if f.Featured != nil {
		q["isFeatured"] = *f.Featured
	}

	stock := bson.M{}
	if f.InStock {
		stock["$gt"] = 0
	}
	if f.LowStock > 0 {
		stock["$lte"] = f.LowStock
	}
	if len(stock) > 0 {
		q["stock"] = stock
	}

	if f.Search != "" {
		// Substring match keeps partial words ("yirga") working, which
		// $text does not.
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"name": rx},
			bson.M{"description": rx},
			bson.M{"tags": rx},
		}
	}
	return q
}

func productSort(s store.ProductSort) bson.D {
	switch s {
	case store.SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case store.SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: -1}}
	case store.SortRating:
		return bson.D{{Key: "rating.average", Value: -1}, {Key: "rating.count", Value: -1}}
	case store.SortPopular:
		return bson.D{{Key: "soldCount", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return newestFirst
	}
}

func (r *productRepo) List(ctx context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	return findPage[models.Product](ctx, r.coll, productQuery(f), productSort(f.Sort), f.Page)
}

func (r *productRepo) Count(ctx context.Context, f store.ProductFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, productQuery(f))
}

func (r *productRepo) CategoryCounts(ctx context.Context, f store.ProductFilter) ([]models.CategoryCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: productQuery(f)}},
		{{Key: "$group", Value: bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate categories: %w", err)
	}
	var rows []models.CategoryCount
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	byCat := make(map[models.Category]int, len(rows))
	for _, row := range rows {
		byCat[row.Category] = row.Count
	}
	out := make([]models.CategoryCount, 0, len(models.Categories))
	for _, c := range models.Categories {
		out = append(out, models.CategoryCount{Category: c, Count: byCat[c]})
	}
	return out, nil
}

func (r *productRepo) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (*models.Product, error) {
	if qty <= 0 {
		return nil, store.ErrInsufficientStock
	}
	filter := bson.M{"_id": id, "stock": bson.M{"$gte": qty}}
	update := bson.M{
		"$inc": bson.M{"stock": -qty, "soldCount": qty},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	var p models.Product
	err := r.coll.FindOneAndUpdate(ctx, filter, update, returnAfter()).Decode(&p)
	if err == nil {
		return &p, nil
	}
	if mapError(err) != store.ErrNotFound {
		return nil, err
	}
	found, exErr := exists(ctx, r.coll, bson.M{"_id": id})
	if exErr != nil {
		return nil, exErr
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrInsufficientStock
}

func (r *productRepo) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	// soldCount is reduced with a pipeline update so it never goes negative.
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"stock":     bson.M{"$add": bson.A{"$stock", qty}},
			"soldCount": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$soldCount", qty}}}},
			"updatedAt": time.Now().UTC(),
		}}},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *productRepo) SetRating(ctx context.Context, id primitive.ObjectID, rating models.Rating) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"rating": rating}})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
