// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package audit

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/models"
)

func setupTestStore(t *testing.T) *DuckDBStore {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("Failed to open in-memory DuckDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewDuckDBStore(db)
	if err := store.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	return store
}

func sampleEvent(id string, typ EventType, ts time.Time) *Event {
	return &Event{
		ID:          id,
		Timestamp:   ts,
		Type:        typ,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       Actor{ID: "admin-1", Email: "admin@merkato.et", Role: "admin"},
		Target:      &Target{ID: "user-" + id, Type: TargetUser, Name: "Abebe"},
		Source:      Source{IP: "10.0.0.1", UserAgent: "test"},
		Action:      actionOf(typ),
		Description: "test event " + id,
	}
}

// =============================================================================
// DuckDBStore
// =============================================================================

func TestDuckDBStore_SaveAndQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	e := sampleEvent("e1", EventUserApproved, now)
	e.Metadata = mustJSON(map[string]string{"role": "seller"})
	e.RequestID = "req-1"
	if err := store.Save(ctx, e); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	events, err := store.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.ID != "e1" || got.Type != EventUserApproved {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.Actor.Email != "admin@merkato.et" {
		t.Errorf("actor email = %q", got.Actor.Email)
	}
	if got.Target == nil || got.Target.Name != "Abebe" {
		t.Errorf("target = %+v", got.Target)
	}
	if string(got.Metadata) != `{"role":"seller"}` {
		t.Errorf("metadata = %s", got.Metadata)
	}
	if got.RequestID != "req-1" {
		t.Errorf("request id = %q", got.RequestID)
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, now)
	}
}

func TestDuckDBStore_SaveNil(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Save(context.Background(), nil); err == nil {
		t.Error("expected error for nil event")
	}
}

func TestDuckDBStore_Filters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	fixtures := []*Event{
		sampleEvent("a", EventUserApproved, base),
		sampleEvent("b", EventUserDeactivated, base.Add(time.Minute)),
		sampleEvent("c", EventProductDeleted, base.Add(2*time.Minute)),
	}
	failed := sampleEvent("d", EventLoginFailed, base.Add(3*time.Minute))
	failed.Outcome = OutcomeFailure
	failed.Actor = Actor{Email: "who@example.com"}
	failed.Target = nil
	fixtures = append(fixtures, failed)

	for _, e := range fixtures {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save %s: %v", e.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"d", "c", "b", "a"}},
		{"by type", Filter{Types: []EventType{EventUserApproved, EventProductDeleted}}, []string{"c", "a"}},
		{"by actor", Filter{ActorID: "admin-1"}, []string{"c", "b", "a"}},
		{"by target", Filter{TargetID: "user-b"}, []string{"b"}},
		{"by outcome", Filter{Outcome: OutcomeFailure}, []string{"d"}},
		{"since", Filter{Since: base.Add(90 * time.Second)}, []string{"d", "c"}},
		{"until", Filter{Until: base.Add(30 * time.Second)}, []string{"a"}},
		{"limit offset", Filter{Limit: 2, Offset: 1}, []string{"c", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(events) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(events), len(tt.want))
			}
			for i, id := range tt.want {
				if events[i].ID != id {
					t.Errorf("events[%d] = %s, want %s", i, events[i].ID, id)
				}
			}
		})
	}

	n, err := store.Count(ctx, Filter{ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestDuckDBStore_CountByTypeAndDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, e := range []*Event{
		sampleEvent("old", EventUserApproved, now.Add(-48*time.Hour)),
		sampleEvent("n1", EventUserApproved, now.Add(-time.Minute)),
		sampleEvent("n2", EventUserApproved, now.Add(-2*time.Minute)),
		sampleEvent("n3", EventOrderAssigned, now.Add(-3*time.Minute)),
	} {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	counts, err := store.CountByType(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if counts[EventUserApproved] != 2 || counts[EventOrderAssigned] != 1 {
		t.Errorf("counts = %v", counts)
	}

	deleted, err := store.DeleteBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	total, _ := store.Count(ctx, Filter{})
	if total != 3 {
		t.Errorf("remaining = %d, want 3", total)
	}
}

// =============================================================================
// Logger
// =============================================================================

type memoryStore struct {
	mu     sync.Mutex
	events []*Event
	block  chan struct{}
}

func (m *memoryStore) Save(_ context.Context, e *Event) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memoryStore) Query(context.Context, Filter) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	for i, e := range m.events {
		out[i] = *e
	}
	return out, nil
}

func (m *memoryStore) Count(context.Context, Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.events)), nil
}

func (m *memoryStore) CountByType(context.Context, time.Time) (map[EventType]int64, error) {
	return map[EventType]int64{}, nil
}

func (m *memoryStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (m *memoryStore) saved() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Event(nil), m.events...)
}

func TestLogger_LogFillsContext(t *testing.T) {
	store := &memoryStore{}
	l := NewLogger(store, config.AuditConfig{Enabled: true})

	admin := &models.User{ID: primitive.NewObjectID(), Email: "admin@merkato.et", Role: models.RoleAdmin}
	ctx := auth.WithIdentity(context.Background(), &auth.Claims{UserID: admin.ID.Hex(), Email: admin.Email, Role: admin.Role}, admin)
	ctx = ContextWithSource(ctx, Source{IP: "196.188.1.1", UserAgent: "curl"})

	l.Admin(ctx, EventUserDeactivated, &Target{ID: "u1", Type: TargetUser}, "Deactivated", map[string]bool{"isActive": false})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	saved := store.saved()
	if len(saved) != 1 {
		t.Fatalf("saved %d events, want 1", len(saved))
	}
	e := saved[0]
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Error("expected ID and timestamp to be filled")
	}
	if e.Actor.ID != admin.ID.Hex() || e.Actor.Role != "admin" {
		t.Errorf("actor = %+v", e.Actor)
	}
	if e.Source.IP != "196.188.1.1" {
		t.Errorf("source = %+v", e.Source)
	}
	if e.Severity != SeverityWarning {
		t.Errorf("severity = %s, want warning", e.Severity)
	}
	if e.Action != "deactivate" {
		t.Errorf("action = %s", e.Action)
	}
	if string(e.Metadata) != `{"isActive":false}` {
		t.Errorf("metadata = %s", e.Metadata)
	}
}

func TestLogger_Helpers(t *testing.T) {
	store := &memoryStore{}
	l := NewLogger(store, config.AuditConfig{Enabled: true})
	ctx := context.Background()
	u := &models.User{ID: primitive.NewObjectID(), Name: "Sara", Email: "sara@example.com", Role: models.RoleSeller}

	l.Registered(ctx, u)
	l.LoginSucceeded(ctx, u)
	l.LoginFailed(ctx, "nobody@example.com", "unknown email")
	l.Denied(ctx, "admin", "write")
	_ = l.Close()

	saved := store.saved()
	want := []EventType{EventRegistered, EventLoginSucceeded, EventLoginFailed, EventAccessDenied}
	if len(saved) != len(want) {
		t.Fatalf("saved %d events, want %d", len(saved), len(want))
	}
	for i, typ := range want {
		if saved[i].Type != typ {
			t.Errorf("saved[%d] = %s, want %s", i, saved[i].Type, typ)
		}
		if saved[i].Source.IP != "system" {
			t.Errorf("saved[%d] source = %q, want system", i, saved[i].Source.IP)
		}
	}
	if saved[2].Outcome != OutcomeFailure || saved[2].Actor.Email != "nobody@example.com" {
		t.Errorf("failed login event = %+v", saved[2])
	}
}

func TestLogger_Disabled(t *testing.T) {
	store := &memoryStore{}
	l := NewLogger(store, config.AuditConfig{Enabled: false})
	l.Log(context.Background(), &Event{Type: EventLogout})
	_ = l.Close()
	if n := len(store.saved()); n != 0 {
		t.Errorf("disabled logger saved %d events", n)
	}
}

func TestLogger_Nil(t *testing.T) {
	var l *Logger
	l.Log(context.Background(), &Event{Type: EventLogout})
	events, total, err := l.Query(context.Background(), Filter{})
	if err != nil || total != 0 || len(events) != 0 {
		t.Errorf("nil Query = %v, %d, %v", events, total, err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestLogger_DropsWhenFull(t *testing.T) {
	store := &memoryStore{block: make(chan struct{})}
	l := NewLogger(store, config.AuditConfig{Enabled: true, BufferSize: 1})

	// The writer takes the first event and blocks in Save; the second fills
	// the buffer and the third is dropped.
	l.Log(context.Background(), &Event{Type: EventLogout})
	deadline := time.Now().Add(time.Second)
	for len(l.events) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	l.Log(context.Background(), &Event{Type: EventLogout})
	l.Log(context.Background(), &Event{Type: EventLogout})

	close(store.block)
	_ = l.Close()
	if n := len(store.saved()); n != 2 {
		t.Errorf("saved %d events, want 2", n)
	}
}

func TestLogger_QueryAndCleanup(t *testing.T) {
	store := setupTestStore(t)
	l := NewLogger(store, config.AuditConfig{Enabled: true, RetentionDays: 1})
	ctx := context.Background()

	old := sampleEvent("old", EventUserDeleted, time.Now().Add(-72*time.Hour))
	if err := store.Save(ctx, old); err != nil {
		t.Fatal(err)
	}
	l.Log(ctx, sampleEvent("new", EventUserApproved, time.Now()))
	_ = l.Close()

	events, total, err := l.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 2 || len(events) != 2 {
		t.Fatalf("total = %d, len = %d", total, len(events))
	}

	n, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("cleanup removed %d, want 1", n)
	}
}

func TestCaptureSource(t *testing.T) {
	var got Source
	h := CaptureSource(auth.NewIPResolver(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SourceFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.RemoteAddr = "196.188.10.20:5555"
	req.Header.Set("User-Agent", "merkato-test")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.IP != "196.188.10.20" || got.UserAgent != "merkato-test" {
		t.Errorf("source = %+v", got)
	}
}
