// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*WebSocketHubService)(nil)
	_ suture.Service = (*EventRouterService)(nil)
	_ suture.Service = (*PeriodicService)(nil)
)

// =====================================================
// HTTPServerService
// =====================================================

type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stop        chan struct{}
	stopOnce    sync.Once
	shutdowns   atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	f.started <- struct{}{}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.stopOnce.Do(func() { close(f.stop) })
	return f.shutdownErr
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		if svc := NewHTTPServerService(newFakeHTTPServer(), d); svc.shutdownTimeout != 10*time.Second {
			t.Errorf("timeout(%v) = %v, want 10s", d, svc.shutdownTimeout)
		}
	}
}

func TestHTTPServerService_Serve(t *testing.T) {
	tests := []struct {
		name        string
		listenErr   error
		shutdownErr error
		cancel      bool
		wantErr     error
	}{
		{"graceful shutdown", nil, nil, true, context.Canceled},
		{"bind failure", errors.New("bind: address already in use"), nil, false, nil},
		{"shutdown failure", nil, errors.New("drain timed out"), true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeHTTPServer()
			srv.listenErr = tt.listenErr
			srv.shutdownErr = tt.shutdownErr
			svc := NewHTTPServerService(srv, time.Second)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			<-srv.started
			if tt.cancel {
				cancel()
			}

			var err error
			select {
			case err = <-errCh:
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return")
			}

			want := tt.wantErr
			if tt.listenErr != nil {
				want = tt.listenErr
			}
			if tt.shutdownErr != nil {
				want = tt.shutdownErr
			}
			if !errors.Is(err, want) {
				t.Errorf("Serve() = %v, want %v", err, want)
			}
		})
	}
}

// =====================================================
// WebSocketHubService
// =====================================================

type fakeHub struct {
	err  error
	runs atomic.Int32
}

func (h *fakeHub) RunWithContext(ctx context.Context) error {
	h.runs.Add(1)
	if h.err != nil {
		return h.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService_Serve(t *testing.T) {
	hub := &fakeHub{}
	svc := NewWebSocketHubService(hub)
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want deadline exceeded", err)
	}

	broken := &fakeHub{err: errors.New("hub exploded")}
	if err := NewWebSocketHubService(broken).Serve(context.Background()); !errors.Is(err, broken.err) {
		t.Errorf("Serve() = %v, want %v", err, broken.err)
	}
}

// =====================================================
// EventRouterService
// =====================================================

type fakeRouter struct {
	runErr  error
	exitNow bool
	closed  chan struct{}
	once    sync.Once
}

func newFakeRouter() *fakeRouter { return &fakeRouter{closed: make(chan struct{})} }

func (r *fakeRouter) Run(ctx context.Context) error {
	if r.runErr != nil || r.exitNow {
		return r.runErr
	}
	select {
	case <-ctx.Done():
	case <-r.closed:
	}
	return nil
}

func (r *fakeRouter) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func TestEventRouterService_BuildsFreshRouterPerRun(t *testing.T) {
	var builds atomic.Int32
	svc := NewEventRouterService(func() (EventRouter, error) {
		builds.Add(1)
		return newFakeRouter(), nil
	})

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := svc.Serve(ctx)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("run %d: Serve() = %v", i, err)
		}
	}
	if builds.Load() != 2 {
		t.Errorf("builds = %d, want 2", builds.Load())
	}
}

func TestEventRouterService_Failures(t *testing.T) {
	buildErr := errors.New("subscribe: nats unavailable")
	runErr := errors.New("handler registration failed")

	tests := []struct {
		name  string
		build EventRouterFactory
		want  error
	}{
		{"build error", func() (EventRouter, error) { return nil, buildErr }, buildErr},
		{"run error", func() (EventRouter, error) {
			r := newFakeRouter()
			r.runErr = runErr
			return r, nil
		}, runErr},
		{"early exit", func() (EventRouter, error) {
			r := newFakeRouter()
			r.exitNow = true
			return r, nil
		}, ErrRouterStopped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEventRouterService(tt.build).Serve(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("Serve() = %v, want %v", err, tt.want)
			}
		})
	}
}

// =====================================================
// PeriodicService
// =====================================================

func TestPeriodicService_RunsOnStartAndOnTick(t *testing.T) {
	var runs atomic.Int32
	svc := NewPeriodicService("rate-limit-eviction", func(context.Context) error {
		runs.Add(1)
		return nil
	}, PeriodicConfig{Interval: 10 * time.Millisecond, RunOnStart: true})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v", err)
	}
	if runs.Load() < 3 {
		t.Errorf("runs = %d, want at least 3", runs.Load())
	}
	if svc.String() != "rate-limit-eviction" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestPeriodicService_FailedRunDoesNotStopService(t *testing.T) {
	var runs atomic.Int32
	svc := NewPeriodicService("flaky", func(context.Context) error {
		runs.Add(1)
		return errors.New("redis timeout")
	}, PeriodicConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v", err)
	}
	if runs.Load() < 2 {
		t.Errorf("runs = %d, want at least 2", runs.Load())
	}
}

func TestNewPeriodicService_Defaults(t *testing.T) {
	svc := NewPeriodicService("x", func(context.Context) error { return nil }, PeriodicConfig{})
	if svc.config.Interval != time.Hour || svc.config.Timeout != time.Hour {
		t.Errorf("config = %+v", svc.config)
	}
}
