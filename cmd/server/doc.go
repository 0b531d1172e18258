// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package main is the entry point for the Merkato server.

Merkato is a multi-role marketplace backend for Ethiopian regional commerce.
Customers browse and order, sellers manage their catalog once approved,
delivery agents claim and complete orders, and administrators oversee
users, products, orders and analytics.

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("merkato")
	├── DataSupervisor ("data-layer")
	│   ├── audit-retention
	│   ├── token-revocation-gc
	│   ├── rate-limit-eviction   (memory backend only)
	│   └── ws-upgrade-eviction
	├── MessagingSupervisor ("messaging-layer")
	│   ├── websocket-hub
	│   └── events-router
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: Koanf v2 with .env, config file and environment variables
 2. Logging: zerolog with JSON or console output
 3. Store: MongoDB (or the in-memory store for development)
 4. Redis: product cache and shared rate limit counters, when selected
 5. Analytics: DuckDB fact tables and the audit trail
 6. Email: SMTP transport behind a circuit breaker
 7. Events: Watermill over gochannel or NATS JetStream
 8. Authentication: JWT, bcrypt, Badger revocation list, Casbin policy
 9. HTTP: Chi router, REST groups under /api, WebSocket at /ws

MongoDB, Redis and DuckDB clients are closed after the tree stops.

# Configuration

Priority: environment variables > config file > .env > defaults

	# Server
	PORT=5000
	PUBLIC_URL=https://merkato.et
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Storage
	DB_DRIVER=mongo              # mongo or memory
	MONGODB_URI=mongodb://localhost:27017
	MONGO_DATABASE=merkato
	CACHE_BACKEND=memory         # memory, redis or none
	REDIS_ADDR=localhost:6379

	# Security
	JWT_SECRET=<32+ chars>
	RATE_LIMIT_REQUESTS=100
	RATE_LIMIT_WINDOW=15m
	RATE_LIMIT_BACKEND=memory    # memory or redis

	# Email
	EMAIL_ENABLED=true
	SMTP_HOST=smtp.example.com
	SMTP_USERNAME=<user>
	SMTP_PASSWORD=<password>

	# Events
	EVENTS_BACKEND=memory        # memory or nats
	NATS_EMBEDDED=true

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests for SHUTDOWN_TIMEOUT, the event router finishes its
handlers, and services that do not stop in time are logged by name.

# Example Usage

Development without external services:

	export DB_DRIVER=memory
	export JWT_SECRET=$(openssl rand -base64 32)
	export ANALYTICS_DB_PATH=:memory:
	./merkato

Production with MongoDB, Redis and an embedded NATS server:

	export MONGODB_URI=mongodb://mongo:27017
	export CACHE_BACKEND=redis
	export RATE_LIMIT_BACKEND=redis
	export REDIS_ADDR=redis:6379
	export EVENTS_BACKEND=nats
	export NATS_EMBEDDED=true
	export JWT_SECRET=$(openssl rand -base64 32)
	./merkato

Demo data is loaded with the separate seed command:

	go run ./cmd/seed --reset
*/
package main
