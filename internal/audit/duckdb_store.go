// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/merkato/internal/logging"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// DuckDBStore keeps the audit trail in the analytics DuckDB database.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore wraps db. Call CreateTable before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit_events table and its indexes.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			outcome TEXT NOT NULL,
			actor_id TEXT,
			actor_email TEXT,
			actor_role TEXT,
			target_id TEXT,
			target_type TEXT,
			target_name TEXT,
			source_ip TEXT NOT NULL,
			source_user_agent TEXT,
			action TEXT NOT NULL,
			description TEXT NOT NULL,
			metadata TEXT,
			request_id TEXT,
			correlation_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_events(actor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_events(target_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create audit schema: %w", err)
		}
	}
	logging.Debug().Msg("Audit events table created/verified")
	return nil
}

func (s *DuckDBStore) Save(ctx context.Context, e *Event) error {
	if e == nil {
		return fmt.Errorf("audit event cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var targetID, targetType, targetName sql.NullString
	if e.Target != nil {
		targetID = nullString(e.Target.ID)
		targetType = nullString(e.Target.Type)
		targetName = nullString(e.Target.Name)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, timestamp, type, severity, outcome,
			actor_id, actor_email, actor_role,
			target_id, target_type, target_name,
			source_ip, source_user_agent,
			action, description, metadata,
			request_id, correlation_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC(), string(e.Type), string(e.Severity), string(e.Outcome),
		nullString(e.Actor.ID), nullString(e.Actor.Email), nullString(e.Actor.Role),
		targetID, targetType, targetName,
		e.Source.IP, nullString(e.Source.UserAgent),
		e.Action, e.Description, nullString(string(e.Metadata)),
		nullString(e.RequestID), nullString(e.CorrelationID),
	)
	if err != nil {
		return fmt.Errorf("save audit event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *DuckDBStore) Query(ctx context.Context, f Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildWhere(f)
	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, timestamp, type, severity, outcome,
			actor_id, actor_email, actor_role,
			target_id, target_type, target_name,
			source_ip, source_user_agent,
			action, description, metadata,
			request_id, correlation_id
		FROM audit_events` + where + `
		ORDER BY timestamp DESC, id
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func (s *DuckDBStore) Count(ctx context.Context, f Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildWhere(f)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}

// CountByType summarises the trail since the given time.
func (s *DuckDBStore) CountByType(ctx context.Context, since time.Time) (map[EventType]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM audit_events WHERE timestamp >= ? GROUP BY type`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("count audit events by type: %w", err)
	}
	defer rows.Close()

	out := make(map[EventType]int64)
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan audit type count: %w", err)
		}
		out[EventType(t)] = n
	}
	return out, rows.Err()
}

// DeleteBefore removes events older than cutoff.
func (s *DuckDBStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleted audit events count: %w", err)
	}
	return n, nil
}

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	if len(f.Types) > 0 {
		ph := make([]string, len(f.Types))
		for i, t := range f.Types {
			ph[i] = "?"
			args = append(args, string(t))
		}
		conds = append(conds, "type IN ("+strings.Join(ph, ",")+")")
	}
	if f.ActorID != "" {
		conds = append(conds, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.TargetID != "" {
		conds = append(conds, "target_id = ?")
		args = append(args, f.TargetID)
	}
	if f.TargetType != "" {
		conds = append(conds, "target_type = ?")
		args = append(args, f.TargetType)
	}
	if f.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "timestamp < ?")
		args = append(args, f.Until.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var (
		e                                  Event
		typ, severity, outcome             string
		actorID, actorEmail, actorRole     sql.NullString
		targetID, targetType, targetName   sql.NullString
		userAgent, metadata, reqID, corrID sql.NullString
	)
	err := rows.Scan(
		&e.ID, &e.Timestamp, &typ, &severity, &outcome,
		&actorID, &actorEmail, &actorRole,
		&targetID, &targetType, &targetName,
		&e.Source.IP, &userAgent,
		&e.Action, &e.Description, &metadata,
		&reqID, &corrID,
	)
	if err != nil {
		return nil, fmt.Errorf("scan audit event: %w", err)
	}

	e.Type = EventType(typ)
	e.Severity = Severity(severity)
	e.Outcome = Outcome(outcome)
	e.Actor = Actor{ID: actorID.String, Email: actorEmail.String, Role: actorRole.String}
	if targetID.Valid {
		e.Target = &Target{ID: targetID.String, Type: targetType.String, Name: targetName.String}
	}
	e.Source.UserAgent = userAgent.String
	if metadata.Valid && metadata.String != "" {
		e.Metadata = json.RawMessage(metadata.String)
	}
	e.RequestID = reqID.String
	e.CorrelationID = corrID.String
	e.Timestamp = e.Timestamp.UTC()
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
