// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/merkato/internal/events"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/models"
)

var _ events.AnalyticsSink = (*Store)(nil)

// IngestOrder records a new order and its line items. Redelivered events
// are ignored.
func (s *Store) IngestOrder(ctx context.Context, ev events.OrderCreated) error {
	if ev.OrderID == "" {
		return fmt.Errorf("order event without id")
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC()

	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order ingest: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Status changes can be consumed before the order itself, so the fact
	// starts from whatever history is already recorded.
	cur, err := latestState(ctx, tx, ev.OrderID)
	if err != nil {
		return err
	}
	status, updatedAt := string(models.StatusPending), createdAt
	if cur.status != "" {
		status, updatedAt = cur.status, cur.at
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders_fact (
			order_id, order_number, customer_id, agent_id, status, payment_method, city, region,
			subtotal, delivery_fee, vat, total, created_at, updated_at, delivered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id) DO NOTHING`,
		ev.OrderID, ev.OrderNumber, ev.CustomerID, cur.agentID, status, ev.PaymentMethod,
		nullString(ev.City), nullString(ev.Region),
		ev.Subtotal.Float64(), ev.DeliveryFee.Float64(), ev.VAT.Float64(), ev.Total.Float64(),
		createdAt, updatedAt, cur.deliveredAt,
	)
	if err != nil {
		return fmt.Errorf("insert order fact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logging.Ctx(ctx).Debug().Str("order_id", ev.OrderID).Msg("Order already ingested")
		return nil
	}

	for i, it := range ev.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items_fact (
				order_id, line_no, product_id, product_name, seller_id, category,
				quantity, unit_price, line_total, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.OrderID, i, it.ProductID, it.Name, it.SellerID, nullString(it.Category),
			it.Quantity, it.Price.Float64(), it.LineTotal.Float64(), createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert order item fact: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_events (order_id, from_status, to_status, actor_id, actor_role, occurred_at)
		VALUES (?, NULL, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		ev.OrderID, string(models.StatusPending), ev.CustomerID, string(models.RoleCustomer), createdAt,
	); err != nil {
		return fmt.Errorf("insert initial status event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order ingest: %w", err)
	}
	return nil
}

// IngestStatusChange appends to the status history and moves the order
// fact to the new status.
func (s *Store) IngestStatusChange(ctx context.Context, ev events.OrderStatusChanged) error {
	if ev.OrderID == "" || ev.To == "" {
		return fmt.Errorf("status event without order id or status")
	}
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO order_status_events (
			order_id, from_status, to_status, actor_id, actor_role, agent_id, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		ev.OrderID, nullString(string(ev.From)), string(ev.To),
		nullString(ev.ActorID), nullString(string(ev.ActorRole)), nullString(ev.DeliveryAgentID), at,
	); err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}

	var deliveredAt sql.NullTime
	if ev.To == models.StatusDelivered {
		deliveredAt = sql.NullTime{Time: at, Valid: true}
	}
	// A redelivered older transition must not move the fact backwards.
	if _, err := s.db.ExecContext(ctx, `
		UPDATE orders_fact SET
			status = CASE WHEN updated_at <= ? THEN ? ELSE status END,
			updated_at = GREATEST(updated_at, ?),
			agent_id = COALESCE(?, agent_id),
			delivered_at = COALESCE(?, delivered_at)
		WHERE order_id = ?`,
		at, string(ev.To), at, nullString(ev.DeliveryAgentID), deliveredAt, ev.OrderID,
	); err != nil {
		return fmt.Errorf("update order fact: %w", err)
	}
	return nil
}

// IngestSignup records a new account.
func (s *Store) IngestSignup(ctx context.Context, ev events.UserRegistered) error {
	if ev.UserID == "" {
		return fmt.Errorf("signup event without user id")
	}
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO user_signups (user_id, role, region, occurred_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		ev.UserID, string(ev.Role), nullString(ev.Region), at.UTC(),
	); err != nil {
		return fmt.Errorf("insert signup: %w", err)
	}
	return nil
}

// Backfill ingests orders that were placed while the event pipeline was
// unavailable, replaying their tracking history. It returns the number of
// orders processed.
func (s *Store) Backfill(ctx context.Context, orders []*models.Order) (int, error) {
	n := 0
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := s.IngestOrder(ctx, events.NewOrderCreated(o)); err != nil {
			return n, err
		}
		prev := models.StatusPending
		for _, u := range o.TrackingUpdates {
			if u.Status == prev || u.Status == models.StatusPending {
				continue
			}
			ev := events.OrderStatusChanged{
				OrderID:   o.ID.Hex(),
				From:      prev,
				To:        u.Status,
				ActorRole: u.ActorRole,
				At:        u.Timestamp,
			}
			if !u.ActorID.IsZero() {
				ev.ActorID = u.ActorID.Hex()
			}
			if o.DeliveryAgentID != nil {
				ev.DeliveryAgentID = o.DeliveryAgentID.Hex()
			}
			if err := s.IngestStatusChange(ctx, ev); err != nil {
				return n, err
			}
			prev = u.Status
		}
		n++
	}
	return n, nil
}

// Count returns the number of order facts, used to decide whether a
// backfill is needed at startup.
func (s *Store) Count(ctx context.Context) (int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders_fact`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count order facts: %w", err)
	}
	return n, nil
}

type orderState struct {
	status      string
	at          time.Time
	agentID     sql.NullString
	deliveredAt sql.NullTime
}

// latestState summarises the recorded status history of an order. The zero
// value means nothing beyond the initial pending event is known.
func latestState(ctx context.Context, tx *sql.Tx, orderID string) (orderState, error) {
	var st orderState
	err := tx.QueryRowContext(ctx, `
		SELECT to_status, occurred_at
		FROM order_status_events
		WHERE order_id = ? AND to_status <> ?
		ORDER BY occurred_at DESC
		LIMIT 1`,
		orderID, string(models.StatusPending),
	).Scan(&st.status, &st.at)
	if errors.Is(err, sql.ErrNoRows) {
		return orderState{}, nil
	}
	if err != nil {
		return orderState{}, fmt.Errorf("query status history: %w", err)
	}
	st.at = st.at.UTC()

	if err := tx.QueryRowContext(ctx, `
		SELECT
			(SELECT agent_id FROM order_status_events
			 WHERE order_id = ? AND agent_id IS NOT NULL
			 ORDER BY occurred_at DESC LIMIT 1),
			(SELECT occurred_at FROM order_status_events
			 WHERE order_id = ? AND to_status = ?)`,
		orderID, orderID, string(models.StatusDelivered),
	).Scan(&st.agentID, &st.deliveredAt); err != nil {
		return orderState{}, fmt.Errorf("query delivery history: %w", err)
	}
	return st, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
