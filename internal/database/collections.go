// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

// ========================================
// Carts
// ========================================

type cartRepo struct {
	coll *mongo.Collection
}

func (r *cartRepo) Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	var c models.Cart
	err := r.coll.FindOne(ctx, bson.M{"user": userID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	return &c, nil
}

func (r *cartRepo) Save(ctx context.Context, c *models.Cart) error {
	c.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{"items": c.Items, "updatedAt": c.UpdatedAt}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"user": c.UserID}, update, options.Update().SetUpsert(true))
	return mapError(err)
}

func (r *cartRepo) Clear(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"user": userID})
	return mapError(err)
}

// ========================================
// Wishlists
// ========================================

type wishlistRepo struct {
	coll *mongo.Collection
}

func (r *wishlistRepo) Get(ctx context.Context, userID primitive.ObjectID) (*models.Wishlist, error) {
	var w models.Wishlist
	err := r.coll.FindOne(ctx, bson.M{"user": userID}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.Wishlist{UserID: userID, Items: []models.WishlistItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if w.Items == nil {
		w.Items = []models.WishlistItem{}
	}
	return &w, nil
}

func (r *wishlistRepo) Save(ctx context.Context, w *models.Wishlist) error {
	w.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{"items": w.Items, "updatedAt": w.UpdatedAt}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"user": w.UserID}, update, options.Update().SetUpsert(true))
	return mapError(err)
}

// ========================================
// Reviews
// ========================================

type reviewRepo struct {
	coll *mongo.Collection
}

func (r *reviewRepo) Create(ctx context.Context, rv *models.Review) error {
	if rv.ID.IsZero() {
		rv.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, rv)
	return mapError(err)
}

func (r *reviewRepo) ListByProduct(ctx context.Context, productID primitive.ObjectID, p store.Page) ([]models.Review, int64, error) {
	return findPage[models.Review](ctx, r.coll, bson.M{"product": productID}, newestFirst, p)
}

// ========================================
// Notifications
// ========================================

type notificationRepo struct {
	coll *mongo.Collection
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, n)
	return mapError(err)
}

func (r *notificationRepo) List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, p store.Page) ([]models.Notification, int64, error) {
	filter := bson.M{"user": userID}
	if unreadOnly {
		filter["read"] = false
	}
	return findPage[models.Notification](ctx, r.coll, filter, newestFirst, p)
}

func (r *notificationRepo) MarkRead(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "user": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.coll.UpdateMany(ctx, bson.M{"user": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, mapError(err)
	}
	return res.ModifiedCount, nil
}

func (r *notificationRepo) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"user": userID, "read": false})
}
