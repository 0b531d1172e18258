// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Authentication
	EventLoginSucceeded  EventType = "auth.login"
	EventLoginFailed     EventType = "auth.login_failed"
	EventLogout          EventType = "auth.logout"
	EventRegistered      EventType = "auth.registered"
	EventPasswordChanged EventType = "auth.password_changed"

	// Authorization
	EventAccessDenied EventType = "authz.denied"

	// Account moderation
	EventUserApproved    EventType = "user.approved"
	EventUserActivated   EventType = "user.activated"
	EventUserDeactivated EventType = "user.deactivated"
	EventUserDeleted     EventType = "user.deleted"

	// Catalog moderation
	EventProductModerated EventType = "product.moderated"
	EventProductDeleted   EventType = "product.deleted"

	// Orders
	EventOrderStatusOverride EventType = "order.status_override"
	EventOrderAssigned       EventType = "order.assigned"

	// Communication
	EventBulkEmail EventType = "email.bulk"
)

// Severity indicates how closely an event deserves review.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Outcome indicates whether the action succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one entry of the audit trail.
type Event struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Type          EventType       `json:"type"`
	Severity      Severity        `json:"severity"`
	Outcome       Outcome         `json:"outcome"`
	Actor         Actor           `json:"actor"`
	Target        *Target         `json:"target,omitempty"`
	Source        Source          `json:"source"`
	Action        string          `json:"action"`
	Description   string          `json:"description"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	RequestID     string          `json:"requestId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Actor is who performed the action. ID is empty for anonymous requests
// such as a failed login for an unknown email.
type Actor struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Target is the object acted on.
type Target struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Target types.
const (
	TargetUser    = "user"
	TargetProduct = "product"
	TargetOrder   = "order"
	TargetRole    = "role"
)

// Source is where the request came from.
type Source struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	Types      []EventType
	ActorID    string
	TargetID   string
	TargetType string
	Outcome    Outcome
	Since      time.Time
	Until      time.Time

	Limit  int
	Offset int
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, e *Event) error
	Query(ctx context.Context, f Filter) ([]Event, error)
	Count(ctx context.Context, f Filter) (int64, error)
	CountByType(ctx context.Context, since time.Time) (map[EventType]int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
