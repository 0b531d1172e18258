// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package audit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
	"github.com/tomtom215/merkato/internal/models"
)

const (
	defaultBufferSize      = 1000
	defaultRetentionDays   = 90
	defaultCleanupInterval = 24 * time.Hour
	saveTimeout            = 5 * time.Second
)

// Logger writes audit events asynchronously. Events are dropped, and
// counted, when the buffer is full so request handlers never block on the
// store. A nil *Logger is valid and records nothing.
type Logger struct {
	store           Store
	enabled         bool
	retention       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	events   chan *Event
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewLogger starts the background writer.
func NewLogger(store Store, cfg config.AuditConfig) *Logger {
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	days := cfg.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	}

	l := &Logger{
		store:           store,
		enabled:         cfg.Enabled && store != nil,
		retention:       time.Duration(days) * 24 * time.Hour,
		cleanupInterval: interval,
		now:             time.Now,
		events:          make(chan *Event, size),
		stop:            make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

func (l *Logger) writer() {
	defer l.wg.Done()
	for {
		select {
		case e := <-l.events:
			l.write(e)
		case <-l.stop:
			for {
				select {
				case e := <-l.events:
					l.write(e)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(e *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := l.store.Save(ctx, e); err != nil {
		logging.Error().Err(err).Str("event_id", e.ID).Str("type", string(e.Type)).Msg("Failed to save audit event")
		return
	}
	metrics.AuditEvents.WithLabelValues(string(e.Type)).Inc()
}

// Log completes e from ctx and queues it. Missing actor and source fields
// are filled from the authenticated user and the request source on ctx.
func (l *Logger) Log(ctx context.Context, e *Event) {
	if l == nil || !l.enabled || e == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}
	if e.Actor == (Actor{}) {
		e.Actor = ActorFromContext(ctx)
	}
	if e.Source.IP == "" {
		e.Source = SourceFromContext(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = logging.RequestIDFromContext(ctx)
	}
	if e.CorrelationID == "" {
		e.CorrelationID = logging.CorrelationIDFromContext(ctx)
	}

	select {
	case l.events <- e:
	default:
		metrics.AuditEventsDropped.Inc()
		logging.Ctx(ctx).Warn().Str("type", string(e.Type)).Msg("Audit buffer full, dropping event")
	}
}

// Admin records an administrative mutation performed by the caller.
func (l *Logger) Admin(ctx context.Context, typ EventType, target *Target, description string, metadata any) {
	severity := SeverityInfo
	switch typ {
	case EventUserDeactivated, EventUserDeleted, EventProductDeleted, EventOrderStatusOverride:
		severity = SeverityWarning
	}
	l.Log(ctx, &Event{
		Type:        typ,
		Severity:    severity,
		Target:      target,
		Action:      actionOf(typ),
		Description: description,
		Metadata:    mustJSON(metadata),
	})
}

// LoginSucceeded records a successful sign-in of u.
func (l *Logger) LoginSucceeded(ctx context.Context, u *models.User) {
	l.Log(ctx, &Event{
		Type:        EventLoginSucceeded,
		Actor:       actorOf(u),
		Action:      "login",
		Description: "User signed in",
	})
}

// LoginFailed records a rejected sign-in for email.
func (l *Logger) LoginFailed(ctx context.Context, email, reason string) {
	l.Log(ctx, &Event{
		Type:        EventLoginFailed,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       Actor{Email: email},
		Action:      "login",
		Description: "Sign-in rejected: " + reason,
		Metadata:    mustJSON(map[string]string{"reason": reason}),
	})
}

// Registered records a new account.
func (l *Logger) Registered(ctx context.Context, u *models.User) {
	l.Log(ctx, &Event{
		Type:        EventRegistered,
		Actor:       actorOf(u),
		Target:      &Target{ID: u.ID.Hex(), Type: TargetUser, Name: u.Name},
		Action:      "register",
		Description: "Account registered as " + string(u.Role),
	})
}

// Denied records an authorization failure.
func (l *Logger) Denied(ctx context.Context, object, action string) {
	l.Log(ctx, &Event{
		Type:        EventAccessDenied,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Target:      &Target{ID: object, Type: "resource"},
		Action:      action,
		Description: "Access denied: " + action + " on " + object,
	})
}

// Query reads the trail.
func (l *Logger) Query(ctx context.Context, f Filter) ([]Event, int64, error) {
	if l == nil || l.store == nil {
		return []Event{}, 0, nil
	}
	events, err := l.store.Query(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total, err := l.store.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Summary counts events per type since the given time.
func (l *Logger) Summary(ctx context.Context, since time.Time) (map[EventType]int64, error) {
	if l == nil || l.store == nil {
		return map[EventType]int64{}, nil
	}
	return l.store.CountByType(ctx, since)
}

// Cleanup deletes events older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l == nil || l.store == nil {
		return 0, nil
	}
	return l.store.DeleteBefore(ctx, l.now().Add(-l.retention))
}

// Serve runs retention cleanup until ctx is cancelled.
func (l *Logger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := l.Cleanup(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("Audit cleanup failed")
			} else if n > 0 {
				logging.Info().Int64("deleted", n).Msg("Removed expired audit events")
			}
		}
	}
}

func (l *Logger) String() string { return "audit-retention" }

// Close drains queued events and stops the writer.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.stopOnce.Do(func() { close(l.stop) })
	l.wg.Wait()
	return nil
}

// =============================================================================
// Context helpers
// =============================================================================

type sourceKey struct{}

// ContextWithSource stores the request origin for later events.
func ContextWithSource(ctx context.Context, s Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, s)
}

// SourceFromContext returns the stored origin or a "system" source for
// background work.
func SourceFromContext(ctx context.Context) Source {
	if s, ok := ctx.Value(sourceKey{}).(Source); ok {
		return s
	}
	return Source{IP: "system"}
}

// ActorFromContext describes the authenticated user on ctx.
func ActorFromContext(ctx context.Context) Actor {
	if u, ok := auth.UserFromContext(ctx); ok {
		return actorOf(u)
	}
	if c, ok := auth.ClaimsFromContext(ctx); ok {
		return Actor{ID: c.UserID, Email: c.Email, Role: string(c.Role)}
	}
	return Actor{}
}

// CaptureSource is HTTP middleware that records the client IP and user
// agent for audit events raised while handling the request.
func CaptureSource(ips *auth.IPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			src := Source{IP: ips.ClientIP(r), UserAgent: r.UserAgent()}
			next.ServeHTTP(w, r.WithContext(ContextWithSource(r.Context(), src)))
		})
	}
}

func actorOf(u *models.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{ID: u.ID.Hex(), Email: u.Email, Role: string(u.Role)}
}

func actionOf(t EventType) string {
	switch t {
	case EventUserApproved:
		return "approve"
	case EventUserActivated:
		return "activate"
	case EventUserDeactivated:
		return "deactivate"
	case EventUserDeleted, EventProductDeleted:
		return "delete"
	case EventProductModerated:
		return "moderate"
	case EventOrderStatusOverride:
		return "update_status"
	case EventOrderAssigned:
		return "assign"
	case EventBulkEmail:
		return "send"
	default:
		return string(t)
	}
}
