// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package metrics declares the Prometheus collectors exported at /metrics.

Collectors are package globals registered with promauto, so importing the
package is enough to expose them. Record* helpers keep label handling in
one place.

# Available Metrics

HTTP:
  - api_requests_total{method, endpoint, status_code}
  - api_request_duration_seconds{method, endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{scope}

Marketplace:
  - orders_placed_total{payment_method}
  - order_placement_failures_total{reason}
  - order_status_transitions_total{from, to, role}
  - order_value_etb (histogram)
  - auth_attempts_total{operation, result}
  - emails_sent_total{template, result}

Infrastructure:
  - mongo_operation_duration_seconds{operation, collection}
  - cache_hits_total{cache_type}, cache_misses_total{cache_type}
  - websocket_connections, websocket_messages_sent_total, websocket_errors_total{error_type}
  - circuit_breaker_state{name} (0=closed, 1=half-open, 2=open)
  - circuit_breaker_requests_total{name, result}
  - events_published_total{topic}, events_processed_total{topic, result}
  - audit_events_total{action}, audit_events_dropped_total
*/
package metrics
