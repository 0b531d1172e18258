// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package main

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/merkato/internal/config"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		want    options
		wantErr bool
	}{
		{
			name: "env fallback",
			env:  map[string]string{"SEED_ADMIN_PASSWORD": "s3cret-pass", "SEED_ADMIN_EMAIL": "ops@merkato.et"},
			want: options{AdminEmail: "ops@merkato.et", AdminPassword: "s3cret-pass", DemoPassword: defaultDemoPassword, Timeout: 2 * time.Minute},
		},
		{
			name: "flags win over env",
			args: []string{"--reset", "--no-products", "--admin-password", "flag-pass-1", "--demo-password", "demo-pass", "--timeout", "30s"},
			env:  map[string]string{"SEED_ADMIN_PASSWORD": "env-pass-1"},
			want: options{Reset: true, NoProducts: true, AdminPassword: "flag-pass-1", DemoPassword: "demo-pass", Timeout: 30 * time.Second},
		},
		{name: "missing admin password", wantErr: true},
		{name: "short admin password", args: []string{"--admin-password", "short"}, wantErr: true},
		{name: "unknown flag", args: []string{"--wipe"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, envOf(tt.env), io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFlags_Help(t *testing.T) {
	_, err := parseFlags([]string{"-h"}, envOf(nil), io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("parseFlags(-h) = %v, want flag.ErrHelp", err)
	}
}

// =====================================================
// Guards that run before any connection is made
// =====================================================

func TestRun_Guards(t *testing.T) {
	memory := config.Defaults()
	memory.Database.Driver = "memory"
	if err := run(memory, options{Timeout: time.Second}); err == nil {
		t.Error("run() with the memory driver should fail")
	}

	prod := config.Defaults()
	prod.Server.Environment = "production"
	if err := run(prod, options{Reset: true, Timeout: time.Second}); err == nil {
		t.Error("run() --reset in production without --force should fail")
	}
}
