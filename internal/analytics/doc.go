// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

// Package analytics keeps a DuckDB copy of order activity for dashboards.
//
// Order and signup events from the event bus are ingested into four tables:
// orders_fact (one row per order, moved along as its status changes),
// order_items_fact (one row per line), order_status_events (the status
// history) and user_signups. Ingestion is idempotent so redelivered events
// are harmless. Revenue always excludes cancelled orders.
package analytics
