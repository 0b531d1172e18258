// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package supervisor provides process supervision for Merkato using suture v4.

Every long-running component of the server runs under one tree so that a
crash restarts the component instead of the process, and so that shutdown
happens in one place.

# Overview

	RootSupervisor ("merkato")
	├── DataSupervisor ("data-layer")
	│   ├── audit-retention       (audit.Logger)
	│   ├── token-revocation-gc   (auth.RevocationStore, badger)
	│   ├── rate-limit-eviction   (auth.SlidingWindowLimiter, memory backend)
	│   └── ws-upgrade-eviction   (auth.UpgradeLimiter)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── websocket-hub
	│   └── events-router         (watermill, gochannel or NATS JetStream)
	└── APISupervisor ("api-layer")
	    └── http-server

MongoDB, Redis and DuckDB are clients, not services: their drivers
reconnect on their own and they are closed by cmd/server after the tree
stops.

# Usage

	tree, err := supervisor.NewSupervisorTree(logger, supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Past FailureThreshold the supervisor waits FailureBackoff before the next
restart. A service returning nil is not restarted; returning
suture.ErrDoNotRestart does the same explicitly.

# Debugging Shutdown Issues

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("Service did not stop")
	}
*/
package supervisor
