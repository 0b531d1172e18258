// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/merkato/internal/logging"
)

func keys(pairs ...interface{}) bson.D {
	d := make(bson.D, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		d = append(d, bson.E{Key: pairs[i].(string), Value: pairs[i+1]})
	}
	return d
}

func index(name string, k bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: k, Options: options.Index().SetName(name)}
}

func uniqueIndex(name string, k bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: k, Options: options.Index().SetName(name).SetUnique(true)}
}

// Indexes lists the index definitions per collection.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		CollUsers: {
			uniqueIndex("email_unique", keys("email", 1)),
			index("role", keys("role", 1)),
			index("role_approved", keys("role", 1, "isApproved", 1)),
		},
		CollProducts: {
			{
				Keys: keys("name", "text", "description", "text", "tags", "text"),
				Options: options.Index().
					SetName("product_text").
					SetWeights(keys("name", 10, "tags", 5, "description", 1)),
			},
			index("category", keys("category", 1)),
			index("seller", keys("seller", 1)),
			index("active_featured", keys("isActive", 1, "isFeatured", 1)),
			index("price", keys("price", 1)),
			index("created_desc", keys("createdAt", -1)),
		},
		CollOrders: {
			uniqueIndex("order_number_unique", keys("orderNumber", 1)),
			index("customer", keys("customer", 1, "createdAt", -1)),
			index("items_seller", keys("items.seller", 1)),
			index("delivery_agent", keys("deliveryAgent", 1)),
			index("status", keys("orderStatus", 1)),
			index("created_desc", keys("createdAt", -1)),
		},
		CollCarts: {
			uniqueIndex("user_unique", keys("user", 1)),
		},
		CollWishlists: {
			uniqueIndex("user_unique", keys("user", 1)),
		},
		CollReviews: {
			uniqueIndex("product_customer_unique", keys("product", 1, "customer", 1)),
			index("product", keys("product", 1, "createdAt", -1)),
		},
		CollNotifications: {
			index("user_read_created", keys("user", 1, "read", 1, "createdAt", -1)),
			{
				Keys: keys("key", 1),
				Options: options.Index().
					SetName("key_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"key": bson.M{"$exists": true}}),
			},
		},
	}
}

// EnsureIndexes creates every index. Existing indexes with the same
// definition are left alone by the server.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	created := 0
	for coll, models := range Indexes() {
		names, err := m.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
		created += len(names)
	}
	logging.Info().Int("indexes", created).Msg("MongoDB indexes ensured")
	return nil
}
