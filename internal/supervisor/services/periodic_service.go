// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/merkato/internal/logging"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// PeriodicConfig holds the schedule of a PeriodicService.
type PeriodicConfig struct {
	// Interval between runs. Defaults to one hour.
	Interval time.Duration

	// RunOnStart runs the task once before the first tick.
	RunOnStart bool

	// Timeout bounds a single run. Zero means Interval.
	Timeout time.Duration
}

// PeriodicService runs a maintenance task on a ticker: rate limiter
// eviction, websocket upgrade bucket eviction and similar jobs that have
// no lifecycle of their own. A failed run is logged and retried on the
// next tick rather than restarting the service.
type PeriodicService struct {
	task   Task
	config PeriodicConfig
	logger zerolog.Logger
	name   string
}

// NewPeriodicService creates a periodic job named name.
func NewPeriodicService(name string, task Task, cfg PeriodicConfig) *PeriodicService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &PeriodicService{
		task:   task,
		config: cfg,
		logger: logging.With().Str("service", name).Logger(),
		name:   name,
	}
}

// Serve implements suture.Service.
func (s *PeriodicService) Serve(ctx context.Context) error {
	if s.config.RunOnStart {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *PeriodicService) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := s.task(runCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Periodic task failed")
		return
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("Periodic task complete")
}

func (s *PeriodicService) String() string {
	return s.name
}
