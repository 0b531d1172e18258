// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

type userRepo struct {
	coll *mongo.Collection
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	filter := bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *userRepo) Update(ctx context.Context, u *models.User) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func userQuery(f store.UserFilter) bson.M {
	q := bson.M{}
	if f.Role != "" {
		q["role"] = f.Role
	}
	if f.IsApproved != nil {
		q["isApproved"] = *f.IsApproved
	}
	if f.IsActive != nil {
		q["isActive"] = *f.IsActive
	}
	if f.Available != nil {
		q["deliveryProfile.available"] = *f.Available
	}
	if f.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"name": rx},
			bson.M{"email": rx},
			bson.M{"phone": rx},
		}
	}
	return q
}

func (r *userRepo) List(ctx context.Context, f store.UserFilter) ([]models.User, int64, error) {
	return findPage[models.User](ctx, r.coll, userQuery(f), newestFirst, f.Page)
}

func (r *userRepo) Count(ctx context.Context, f store.UserFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, userQuery(f))
}

func (r *userRepo) setFields(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *userRepo) TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.setFields(ctx, id, bson.M{"lastLoginAt": at})
}

func (r *userRepo) SetRating(ctx context.Context, id primitive.ObjectID, rating models.Rating) error {
	return r.setFields(ctx, id, bson.M{"rating": rating})
}

func (r *userRepo) HiddenSellerIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	filter := bson.M{
		"role": models.RoleSeller,
		"$or": bson.A{
			bson.M{"isApproved": false},
			bson.M{"isActive": false},
		},
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find hidden sellers: %w", err)
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
