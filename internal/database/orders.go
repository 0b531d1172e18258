// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

type orderRepo struct {
	coll *mongo.Collection
}

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, o); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var o models.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}

func orderQuery(f store.OrderFilter) bson.M {
	q := bson.M{}
	if f.CustomerID != nil {
		q["customer"] = *f.CustomerID
	}
	if f.SellerID != nil {
		q["items.seller"] = *f.SellerID
	}
	if f.AgentID != nil {
		q["deliveryAgent"] = *f.AgentID
	} else if f.Unassigned {
		// matches both null and missing
		q["deliveryAgent"] = nil
	}
	if len(f.Statuses) > 0 {
		q["orderStatus"] = bson.M{"$in": f.Statuses}
	}
	return q
}

func (r *orderRepo) List(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	return findPage[models.Order](ctx, r.coll, orderQuery(f), newestFirst, f.Page)
}

func (r *orderRepo) CountByStatus(ctx context.Context, f store.OrderFilter) (map[models.OrderStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: orderQuery(f)}},
		{{Key: "$group", Value: bson.M{"_id": "$orderStatus", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate order status: %w", err)
	}
	var rows []struct {
		Status models.OrderStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// afterMiss resolves a conditional update that matched nothing.
func (r *orderRepo) afterMiss(ctx context.Context, id primitive.ObjectID) error {
	found, err := exists(ctx, r.coll, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if !found {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, c store.StatusChange) (*models.Order, error) {
	set := bson.M{"orderStatus": c.To, "updatedAt": c.At}
	if c.CancelReason != "" {
		set["cancelReason"] = c.CancelReason
	}
	if c.PaymentStatus != "" {
		set["paymentStatus"] = c.PaymentStatus
	}
	if c.DeliveredAt != nil {
		set["deliveredAt"] = *c.DeliveredAt
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"trackingUpdates": c.Update},
	}

	var o models.Order
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "orderStatus": c.From}, update, returnAfter()).Decode(&o)
	if err == nil {
		return &o, nil
	}
	if mapError(err) != store.ErrNotFound {
		return nil, err
	}
	return nil, r.afterMiss(ctx, id)
}

func (r *orderRepo) Assign(ctx context.Context, id primitive.ObjectID, a store.Assignment) (*models.Order, error) {
	filter := bson.M{"_id": id}
	if len(a.Statuses) > 0 {
		filter["orderStatus"] = bson.M{"$in": a.Statuses}
	}
	if a.RequireUnassigned {
		filter["deliveryAgent"] = nil
	}
	update := bson.M{
		"$set":  bson.M{"deliveryAgent": a.AgentID, "updatedAt": a.At},
		"$push": bson.M{"trackingUpdates": a.Update},
	}

	var o models.Order
	err := r.coll.FindOneAndUpdate(ctx, filter, update, returnAfter()).Decode(&o)
	if err == nil {
		return &o, nil
	}
	if mapError(err) != store.ErrNotFound {
		return nil, err
	}
	return nil, r.afterMiss(ctx, id)
}

func (r *orderRepo) DeliveredOrderWith(ctx context.Context, customerID, productID primitive.ObjectID) (*models.Order, error) {
	filter := bson.M{
		"customer":      customerID,
		"orderStatus":   models.StatusDelivered,
		"items.product": productID,
	}
	var o models.Order
	err := r.coll.FindOne(ctx, filter, options.FindOne().SetSort(newestFirst)).Decode(&o)
	if err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}
