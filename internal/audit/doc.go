// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package audit records the administrative audit trail.

Every admin mutation (approvals, status changes, deletions, assignments and
bulk email) plus authentication outcomes are written as Events. The Logger
queues events on a buffered channel and a single writer persists them to a
Store, so request handlers never wait on the database. The production Store
is DuckDBStore, which shares the analytics DuckDB file.

Usage:

	store := audit.NewDuckDBStore(db)
	if err := store.CreateTable(ctx); err != nil {
		return err
	}
	trail := audit.NewLogger(store, cfg.Audit)
	defer trail.Close()

	trail.Admin(ctx, audit.EventUserApproved,
		&audit.Target{ID: id, Type: audit.TargetUser}, "Seller approved", nil)

The actor is taken from the authenticated user on the context and the
source from CaptureSource. Events older than the retention period are
removed by Serve, which runs under the supervisor.
*/
package audit
