// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package service

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/events"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/store"
)

// NotificationService stores in-app notifications and pushes them to
// connected clients.
type NotificationService struct {
	*base
}

var _ events.Notifier = (*NotificationService)(nil)

// Notify persists n and pushes it over the websocket when the user is
// connected. Only the persist step can fail.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if n == nil {
		return nil
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	err := s.store().Notifications.Create(ctx, n)
	if n.Key != "" && errors.Is(err, store.ErrDuplicate) {
		logging.Ctx(ctx).Debug().Str("key", n.Key).Msg("Notification already delivered")
		return nil
	}
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	if s.deps.Pusher != nil {
		s.deps.Pusher.PushNotification(n)
	}
	return nil
}

// deliver is Notify for callers that cannot act on a failure.
func (b *base) deliver(ctx context.Context, n *models.Notification) {
	ns := &NotificationService{base: b}
	if err := ns.Notify(ctx, n); err != nil {
		logWarn(ctx, err, "Failed to deliver notification")
	}
}

// NotificationPage is one page of a user's notifications plus the unread
// count across all pages.
type NotificationPage struct {
	Items  []models.Notification `json:"notifications"`
	Total  int64                 `json:"total"`
	Unread int64                 `json:"unreadCount"`
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, page store.Page) (*NotificationPage, error) {
	items, total, err := s.store().Notifications.List(ctx, userID, unreadOnly, page)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.store().Notifications.UnreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	return &NotificationPage{Items: items, Total: total, Unread: unread}, nil
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.store().Notifications.UnreadCount(ctx, userID)
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id primitive.ObjectID) error {
	err := s.store().Notifications.MarkRead(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Notification not found")
	}
	return err
}

// MarkAllRead marks every notification of the user as read and returns
// how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.store().Notifications.MarkAllRead(ctx, userID)
}
