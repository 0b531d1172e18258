// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/merkato/internal/models"
)

// Scope narrows sales queries. A zero Scope covers the whole marketplace;
// SellerID restricts revenue to that seller's lines.
type Scope struct {
	SellerID string
	Since    time.Time
}

// Sales totals revenue over non-cancelled orders.
type Sales struct {
	Revenue           models.Money `json:"revenue"`
	Orders            int64        `json:"orders"`
	CancelledOrders   int64        `json:"cancelledOrders"`
	Units             int64        `json:"units"`
	AverageOrderValue models.Money `json:"averageOrderValue"`
}

// DayPoint is revenue for one calendar day (UTC).
type DayPoint struct {
	Date    string       `json:"date"`
	Revenue models.Money `json:"revenue"`
	Orders  int64        `json:"orders"`
}

// ProductSales ranks a product by revenue.
type ProductSales struct {
	ProductID string       `json:"productId"`
	Name      string       `json:"name"`
	Units     int64        `json:"units"`
	Revenue   models.Money `json:"revenue"`
}

// SellerSales ranks a seller by revenue.
type SellerSales struct {
	SellerID string       `json:"sellerId"`
	Units    int64        `json:"units"`
	Orders   int64        `json:"orders"`
	Revenue  models.Money `json:"revenue"`
}

// Breakdown is revenue grouped by a dimension such as category or region.
type Breakdown struct {
	Key     string       `json:"key"`
	Orders  int64        `json:"orders"`
	Revenue models.Money `json:"revenue"`
}

// Sales returns revenue, order and unit counts for the scope.
func (s *Store) Sales(ctx context.Context, sc Scope) (*Sales, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		revenue                  float64
		orders, cancelled, units int64
	)
	if sc.SellerID == "" {
		err := s.db.QueryRowContext(ctx, `
			SELECT
				COALESCE(SUM(total) FILTER (WHERE status <> 'cancelled'), 0),
				COUNT(*) FILTER (WHERE status <> 'cancelled'),
				COUNT(*) FILTER (WHERE status = 'cancelled')
			FROM orders_fact
			WHERE created_at >= ?`, sinceOrEpoch(sc.Since),
		).Scan(&revenue, &orders, &cancelled)
		if err != nil {
			return nil, fmt.Errorf("query sales: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, `
			SELECT CAST(COALESCE(SUM(i.quantity), 0) AS BIGINT)
			FROM order_items_fact i JOIN orders_fact o ON o.order_id = i.order_id
			WHERE o.status <> 'cancelled' AND o.created_at >= ?`, sinceOrEpoch(sc.Since),
		).Scan(&units); err != nil {
			return nil, fmt.Errorf("query units: %w", err)
		}
	} else {
		err := s.db.QueryRowContext(ctx, `
			SELECT
				COALESCE(SUM(i.line_total) FILTER (WHERE o.status <> 'cancelled'), 0),
				COUNT(DISTINCT i.order_id) FILTER (WHERE o.status <> 'cancelled'),
				COUNT(DISTINCT i.order_id) FILTER (WHERE o.status = 'cancelled'),
				CAST(COALESCE(SUM(i.quantity) FILTER (WHERE o.status <> 'cancelled'), 0) AS BIGINT)
			FROM order_items_fact i JOIN orders_fact o ON o.order_id = i.order_id
			WHERE i.seller_id = ? AND o.created_at >= ?`, sc.SellerID, sinceOrEpoch(sc.Since),
		).Scan(&revenue, &orders, &cancelled, &units)
		if err != nil {
			return nil, fmt.Errorf("query seller sales: %w", err)
		}
	}

	out := &Sales{
		Revenue:         models.NewMoney(revenue),
		Orders:          orders,
		CancelledOrders: cancelled,
		Units:           units,
	}
	if orders > 0 {
		out.AverageOrderValue = out.Revenue.DivInt(int(orders))
	}
	return out, nil
}

// OrdersByStatus counts orders per current status. Every status is present.
func (s *Store) OrdersByStatus(ctx context.Context, sc Scope) (map[models.OrderStatus]int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT status, COUNT(*) FROM orders_fact WHERE created_at >= ? GROUP BY status`
	args := []any{sinceOrEpoch(sc.Since)}
	if sc.SellerID != "" {
		query = `
			SELECT o.status, COUNT(DISTINCT o.order_id)
			FROM orders_fact o JOIN order_items_fact i ON o.order_id = i.order_id
			WHERE i.seller_id = ? AND o.created_at >= ?
			GROUP BY o.status`
		args = []any{sc.SellerID, sinceOrEpoch(sc.Since)}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders by status: %w", err)
	}
	defer rows.Close()

	out := make(map[models.OrderStatus]int64, len(models.OrderStatuses))
	for _, st := range models.OrderStatuses {
		out[st] = 0
	}
	for rows.Next() {
		var st string
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[models.OrderStatus(st)] = n
	}
	return out, rows.Err()
}

// RevenueByDay returns one point per day for the last days days, ending
// today. Days without sales are zero.
func (s *Store) RevenueByDay(ctx context.Context, sellerID string, days int) ([]DayPoint, error) {
	days = clampDays(days)
	end := dayStart(s.now())
	start := end.AddDate(0, 0, -(days - 1))

	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT CAST(created_at AS DATE) AS day, SUM(total), COUNT(*)
		FROM orders_fact
		WHERE status <> 'cancelled' AND created_at >= ?
		GROUP BY day`
	args := []any{start}
	if sellerID != "" {
		query = `
			SELECT CAST(o.created_at AS DATE) AS day, SUM(i.line_total), COUNT(DISTINCT o.order_id)
			FROM order_items_fact i JOIN orders_fact o ON o.order_id = i.order_id
			WHERE o.status <> 'cancelled' AND o.created_at >= ? AND i.seller_id = ?
			GROUP BY day`
		args = append(args, sellerID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query revenue by day: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]DayPoint)
	for rows.Next() {
		var (
			day     time.Time
			revenue float64
			orders  int64
		)
		if err := rows.Scan(&day, &revenue, &orders); err != nil {
			return nil, fmt.Errorf("scan revenue day: %w", err)
		}
		key := day.UTC().Format(time.DateOnly)
		byDay[key] = DayPoint{Date: key, Revenue: models.NewMoney(revenue), Orders: orders}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revenue days: %w", err)
	}

	points := make([]DayPoint, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		if p, ok := byDay[key]; ok {
			points = append(points, p)
			continue
		}
		points = append(points, DayPoint{Date: key, Revenue: models.NewMoney(0)})
	}
	return points, nil
}

// TopProducts ranks products by revenue.
func (s *Store) TopProducts(ctx context.Context, sc Scope, limit int) ([]ProductSales, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT i.product_id, ANY_VALUE(i.product_name), CAST(SUM(i.quantity) AS BIGINT), SUM(i.line_total) AS revenue
		FROM order_items_fact i JOIN orders_fact o ON o.order_id = i.order_id
		WHERE o.status <> 'cancelled' AND o.created_at >= ?`
	args := []any{sinceOrEpoch(sc.Since)}
	if sc.SellerID != "" {
		query += ` AND i.seller_id = ?`
		args = append(args, sc.SellerID)
	}
	query += ` GROUP BY i.product_id ORDER BY revenue DESC, i.product_id LIMIT ?`
	args = append(args, clampLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top products: %w", err)
	}
	defer rows.Close()

	out := make([]ProductSales, 0)
	for rows.Next() {
		var p ProductSales
		var revenue float64
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Units, &revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		p.Revenue = models.NewMoney(revenue)
		out = append(out, p)
	}
	return out, rows.Err()
}

// TopSellers ranks sellers by revenue.
func (s *Store) TopSellers(ctx context.Context, since time.Time, limit int) ([]SellerSales, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.seller_id, CAST(SUM(i.quantity) AS BIGINT), COUNT(DISTINCT i.order_id), SUM(i.line_total) AS revenue
		FROM order_items_fact i JOIN orders_fact o ON o.order_id = i.order_id
		WHERE o.status <> 'cancelled' AND o.created_at >= ?
		GROUP BY i.seller_id
		ORDER BY revenue DESC, i.seller_id
		LIMIT ?`, sinceOrEpoch(since), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query top sellers: %w", err)
	}
	defer rows.Close()

	out := make([]SellerSales, 0)
	for rows.Next() {
		var ss SellerSales
		var revenue float64
		if err := rows.Scan(&ss.SellerID, &ss.Units, &ss.Orders, &revenue); err != nil {
			return nil, fmt.Errorf("scan top seller: %w", err)
		}
		ss.Revenue = models.NewMoney(revenue)
		out = append(out, ss)
	}
	return out, rows.Err()
}

// SalesByCategory groups line revenue by product category.
func (s *Store) SalesByCategory(ctx context.Context, sc Scope) ([]Breakdown, error) {
	query := `
		SELECT COALESCE(i.category, 'other') AS key, COUNT(DISTINCT i.order_id), SUM(i.line_total) AS revenue
		FROM order_items_fact i JOIN orders_fact o ON o.order_id = i.order_id
		WHERE o.status <> 'cancelled' AND o.created_at >= ?`
	args := []any{sinceOrEpoch(sc.Since)}
	if sc.SellerID != "" {
		query += ` AND i.seller_id = ?`
		args = append(args, sc.SellerID)
	}
	query += ` GROUP BY key ORDER BY revenue DESC, key`
	return s.breakdown(ctx, "category", query, args...)
}

// SalesByRegion groups order revenue by shipping region.
func (s *Store) SalesByRegion(ctx context.Context, since time.Time) ([]Breakdown, error) {
	return s.breakdown(ctx, "region", `
		SELECT COALESCE(region, 'unknown') AS key, COUNT(*), SUM(total) AS revenue
		FROM orders_fact
		WHERE status <> 'cancelled' AND created_at >= ?
		GROUP BY key ORDER BY revenue DESC, key`, sinceOrEpoch(since))
}

func (s *Store) breakdown(ctx context.Context, dim, query string, args ...any) ([]Breakdown, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sales by %s: %w", dim, err)
	}
	defer rows.Close()

	out := make([]Breakdown, 0)
	for rows.Next() {
		var b Breakdown
		var revenue float64
		if err := rows.Scan(&b.Key, &b.Orders, &revenue); err != nil {
			return nil, fmt.Errorf("scan sales by %s: %w", dim, err)
		}
		b.Revenue = models.NewMoney(revenue)
		out = append(out, b)
	}
	return out, rows.Err()
}

// SignupsByRole counts accounts registered since the given time.
func (s *Store) SignupsByRole(ctx context.Context, since time.Time) (map[models.Role]int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, COUNT(*) FROM user_signups WHERE occurred_at >= ? GROUP BY role`, sinceOrEpoch(since))
	if err != nil {
		return nil, fmt.Errorf("query signups: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Role]int64)
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scan signups: %w", err)
		}
		out[models.Role(role)] = n
	}
	return out, rows.Err()
}

// AverageDeliveryTime is the mean time from order placement to delivery
// for orders delivered since the given time. Zero when none were delivered.
func (s *Store) AverageDeliveryTime(ctx context.Context, agentID string, since time.Time) (time.Duration, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COALESCE(AVG(epoch(delivered_at) - epoch(created_at)), 0)
		FROM orders_fact
		WHERE delivered_at IS NOT NULL AND delivered_at >= ?`
	args := []any{sinceOrEpoch(since)}
	if agentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	var seconds float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&seconds); err != nil {
		return 0, fmt.Errorf("query delivery time: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second), nil
}

func sinceOrEpoch(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t.UTC()
}

func clampDays(days int) int {
	if days <= 0 {
		return defaultDashboardDays
	}
	if days > maxDashboardDays {
		return maxDashboardDays
	}
	return days
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return defaultTopLimit
	}
	return limit
}
