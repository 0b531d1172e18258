// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	buf := &bytes.Buffer{}
	SetLogger(NewTestLogger(buf))
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if idx := strings.LastIndex(line, "\n"); idx >= 0 {
		line = line[idx+1:]
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel("warn") || !ValidLevel("Debug") {
		t.Error("expected warn and Debug to be valid")
	}
	if ValidLevel("verbose") {
		t.Error("verbose should not be a valid level")
	}
}

func TestInitWritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev); zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	Init(Config{Level: "debug", Format: "json", Output: buf})
	Debug().Str("order", "MRK-1").Msg("hello")

	m := decodeLine(t, buf)
	if m["message"] != "hello" || m["order"] != "MRK-1" || m["level"] != "debug" {
		t.Errorf("unexpected entry: %v", m)
	}
	if m["service"] != "merkato" {
		t.Errorf("service field missing: %v", m)
	}
}

func TestCtxAddsIdentifiers(t *testing.T) {
	buf := captureGlobal(t)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	ctx = ContextWithUserID(ctx, "user-1")
	Ctx(ctx).Info().Msg("with ids")

	m := decodeLine(t, buf)
	for key, want := range map[string]string{"request_id": "req-1", "correlation_id": "corr-1", "user_id": "user-1"} {
		if m[key] != want {
			t.Errorf("%s = %v, want %s", key, m[key], want)
		}
	}
}

func TestEnsureCorrelationID(t *testing.T) {
	ctx := EnsureCorrelationID(context.Background())
	id := CorrelationIDFromContext(ctx)
	if len(id) != 8 {
		t.Fatalf("correlation id = %q, want 8 chars", id)
	}
	if got := CorrelationIDFromContext(EnsureCorrelationID(ctx)); got != id {
		t.Errorf("existing id replaced: %q != %q", got, id)
	}
}

func TestSlogHandler(t *testing.T) {
	buf := captureGlobal(t)

	logger := NewSlogLogger().With("supervisor", "root").WithGroup("svc")
	logger.Warn("service restarted", "name", "http", "attempt", 3)

	m := decodeLine(t, buf)
	if m["level"] != "warn" {
		t.Errorf("level = %v, want warn", m["level"])
	}
	if m["svc.name"] != "http" {
		t.Errorf("grouped attr missing: %v", m)
	}
	if m["svc.attempt"] != float64(3) {
		t.Errorf("svc.attempt = %v", m["svc.attempt"])
	}
	if m["supervisor"] != "root" {
		t.Errorf("attr added before WithGroup must stay ungrouped: %v", m)
	}
}
