// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

// Package response writes the JSON envelope every endpoint answers with.
//
// Success:
//
//	{"success": true, "data": ..., "message": "...", "pagination": {...}}
//
// Failure:
//
//	{"success": false, "message": "...", "errors": ["..."]}
//
// It has no dependencies on the rest of the API so middleware in auth and
// authz can answer in the same shape as handlers.
package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/merkato/internal/logging"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	RequestID  string      `json:"requestId,omitempty"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasMore bool  `json:"hasMore"`
}

// NewPagination fills in Pages and HasMore.
func NewPagination(page, limit int, total int64) *Pagination {
	p := &Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.Pages = int((total + int64(limit) - 1) / int64(limit))
		p.HasMore = int64(page*limit) < total
	}
	return p
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("Failed to write response body")
	}
}

// OK writes a 200 envelope with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// OKMessage writes a 200 envelope with data and a message.
func OKMessage(w http.ResponseWriter, message string, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 envelope.
func Created(w http.ResponseWriter, message string, data interface{}) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Accepted writes a 202 envelope for work that continues in the background.
func Accepted(w http.ResponseWriter, message string, data interface{}) {
	JSON(w, http.StatusAccepted, Envelope{Success: true, Message: message, Data: data})
}

// Page writes a 200 envelope for a list.
func Page(w http.ResponseWriter, data interface{}, p *Pagination) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: p})
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSON(w, status, Envelope{
		Success:   false,
		Message:   message,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}

// ValidationFailed writes the 400 envelope carrying one message per
// failing field.
func ValidationFailed(w http.ResponseWriter, r *http.Request, messages []string) {
	JSON(w, http.StatusBadRequest, Envelope{
		Success:   false,
		Message:   "Validation failed",
		Errors:    messages,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}

// TooManyRequests writes a 429 with Retry-After rounded up to whole seconds.
func TooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	Error(w, r, http.StatusTooManyRequests, "Too many requests, please try again later")
}
