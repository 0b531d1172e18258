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

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/store"
)

// Collection names.
const (
	CollUsers         = "users"
	CollProducts      = "products"
	CollOrders        = "orders"
	CollCarts         = "carts"
	CollWishlists     = "wishlists"
	CollReviews       = "reviews"
	CollNotifications = "notifications"
)

// Mongo wraps a connected client and the application database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    *config.DatabaseConfig
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*Mongo, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetAppName("merkato").
		SetMonitor(newCommandTimer().Monitor())
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logging.Info().Str("database", cfg.Name).Msg("Connected to MongoDB")
	return &Mongo{client: client, db: client.Database(cfg.Name), cfg: cfg}, nil
}

// Ping checks that the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Collection returns a handle on the named collection.
func (m *Mongo) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// Drop removes the whole database. Only cmd/seed --reset calls it.
func (m *Mongo) Drop(ctx context.Context) error {
	return m.db.Drop(ctx)
}

// Store exposes the repositories through the store interfaces.
func (m *Mongo) Store() *store.Store {
	return &store.Store{
		Users:         &userRepo{coll: m.Collection(CollUsers)},
		Products:      &productRepo{coll: m.Collection(CollProducts)},
		Orders:        &orderRepo{coll: m.Collection(CollOrders)},
		Carts:         &cartRepo{coll: m.Collection(CollCarts)},
		Wishlists:     &wishlistRepo{coll: m.Collection(CollWishlists)},
		Reviews:       &reviewRepo{coll: m.Collection(CollReviews)},
		Notifications: &notificationRepo{coll: m.Collection(CollNotifications)},
		Ping:          m.Ping,
		Close:         m.Close,
	}
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	default:
		return err
	}
}

// findPage runs a paged query and the matching count.
func findPage[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D, p store.Page) ([]T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", coll.Name(), err)
	}

	opts := options.Find().SetSort(sort)
	if skip := p.Skip(); skip > 0 {
		opts.SetSkip(int64(skip))
	}
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit))
	}

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, total, nil
}

// exists distinguishes "no such document" from "precondition failed"
// after a conditional update matched nothing.
func exists(ctx context.Context, coll *mongo.Collection, filter bson.M) (bool, error) {
	n, err := coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func returnAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
