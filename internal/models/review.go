// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is a customer's rating of a product they received.
// A customer reviews a product at most once.
type Review struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID    primitive.ObjectID `bson:"product" json:"productId"`
	SellerID     primitive.ObjectID `bson:"seller" json:"sellerId"`
	CustomerID   primitive.ObjectID `bson:"customer" json:"customerId"`
	CustomerName string             `bson:"customerName" json:"customerName"`
	OrderID      primitive.ObjectID `bson:"order" json:"orderId"`
	Rating       int                `bson:"rating" json:"rating"`
	Comment      string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationOrderPlaced    NotificationType = "order_placed"
	NotificationOrderStatus    NotificationType = "order_status"
	NotificationNewOrder       NotificationType = "new_order"
	NotificationAssignment     NotificationType = "delivery_assignment"
	NotificationAccountStatus  NotificationType = "account_status"
	NotificationLowStock       NotificationType = "low_stock"
	NotificationAnnouncement   NotificationType = "announcement"
	NotificationReviewReceived NotificationType = "review_received"
)

// Notification is an in-app message shown in the user's notification list
// and pushed over the websocket when the user is connected.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"user" json:"userId"`
	Type      NotificationType    `bson:"type" json:"type"`
	Title     string              `bson:"title" json:"title"`
	Message   string              `bson:"message" json:"message"`
	OrderID   *primitive.ObjectID `bson:"order,omitempty" json:"orderId,omitempty"`
	Read      bool                `bson:"read" json:"read"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`

	// Key identifies the event that produced the notification. Stores
	// reject a second notification with the same key.
	Key string `bson:"key,omitempty" json:"-"`
}
