// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/merkato/internal/response"
)

const readinessTimeout = 3 * time.Second

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
	Clients   int       `json:"websocketClients"`
	Timestamp time.Time `json:"timestamp"`
}

// DependencyStatus is one entry of the readiness report.
type DependencyStatus struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Healthy  bool   `json:"healthy"`
	Error    string `json:"error,omitempty"`
}

// Health handles liveness requests. It never touches dependencies.
//
// @Summary Liveness probe
// @Description Returns 200 while the process is running.
// @Tags Core
// @Produce json
// @Success 200 {object} response.Envelope{data=HealthStatus}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if h.wsHub != nil {
		clients = h.wsHub.GetClientCount()
	}
	response.OK(w, HealthStatus{
		Status:    "ok",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Seconds(),
		Clients:   clients,
		Timestamp: time.Now().UTC(),
	})
}

// HealthReady handles readiness probe requests
// Returns 200 OK only if every required dependency answers
//
// @Summary Readiness probe
// @Description Probes the database and optional dependencies. Returns 503 when a required one fails.
// @Tags Core
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	ready := true
	degraded := false
	deps := make([]DependencyStatus, 0, len(h.checks))
	for _, c := range h.checks {
		st := DependencyStatus{Name: c.Name, Required: c.Required, Healthy: true}
		if err := c.Check(ctx); err != nil {
			st.Healthy = false
			st.Error = err.Error()
			if c.Required {
				ready = false
			} else {
				degraded = true
			}
		}
		deps = append(deps, st)
	}

	status := "ready"
	switch {
	case !ready:
		status = "not_ready"
	case degraded:
		status = "degraded"
	}
	body := response.Envelope{
		Success: ready,
		Message: status,
		Data: map[string]interface{}{
			"status":       status,
			"dependencies": deps,
			"uptime":       time.Since(h.startTime).Seconds(),
		},
	}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, code, body)
}
