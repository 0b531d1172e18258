// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package services adapts Merkato components to suture.Service.

  - HTTPServerService: ListenAndServe/Shutdown with a drain timeout
  - WebSocketHubService: the notification hub's RunWithContext
  - EventRouterService: the watermill router, rebuilt on every restart
  - PeriodicService: ticker-driven maintenance jobs

Components that already implement Serve(ctx) error, such as
audit.Logger and auth.RevocationStore, are added to the tree directly.

Return values decide what the supervisor does next: nil stops the
service for good, any other error restarts it, and ctx.Err() is the
normal result of shutdown.
*/
package services
