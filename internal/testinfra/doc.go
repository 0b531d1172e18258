// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

// Package testinfra starts MongoDB and Redis in Docker for integration
// tests, using testcontainers-go.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/database/... ./internal/auth/... ./internal/cache/...
//
// Tests call SkipIfNoDocker first so that the tag can be set in
// environments without a Docker daemon.
package testinfra
