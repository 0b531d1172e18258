// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/merkato/internal/logging"
)

// EventRouter is satisfied by *events.Router.
type EventRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// EventRouterFactory builds a router with every handler registered. A
// watermill router cannot run again once closed, so each restart builds a
// new one.
type EventRouterFactory func() (EventRouter, error)

// ErrRouterStopped is returned when the router exits while ctx is still
// live, so that the supervisor restarts it.
var ErrRouterStopped = errors.New("event router stopped unexpectedly")

// EventRouterService consumes order and user events (analytics ingest,
// notifications, emails) under the supervisor.
type EventRouterService struct {
	build EventRouterFactory
	name  string
}

func NewEventRouterService(build EventRouterFactory) *EventRouterService {
	return &EventRouterService{build: build, name: "events-router"}
}

// Serve implements suture.Service.
func (s *EventRouterService) Serve(ctx context.Context) error {
	router, err := s.build()
	if err != nil {
		return fmt.Errorf("build event router: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx)
	}()

	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("event router failed: %w", err)
		}
		return ErrRouterStopped

	case <-ctx.Done():
		if err := router.Close(); err != nil {
			logging.Warn().Err(err).Msg("Event router did not close cleanly")
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *EventRouterService) String() string {
	return s.name
}
