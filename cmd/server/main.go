// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/tomtom215/merkato/docs" // Swagger spec for /swagger
	"github.com/tomtom215/merkato/internal/analytics"
	"github.com/tomtom215/merkato/internal/api"
	"github.com/tomtom215/merkato/internal/audit"
	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/authz"
	"github.com/tomtom215/merkato/internal/cache"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/database"
	"github.com/tomtom215/merkato/internal/events"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/memstore"
	"github.com/tomtom215/merkato/internal/metrics"
	"github.com/tomtom215/merkato/internal/middleware"
	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/notify"
	"github.com/tomtom215/merkato/internal/service"
	"github.com/tomtom215/merkato/internal/store"
	"github.com/tomtom215/merkato/internal/supervisor"
	"github.com/tomtom215/merkato/internal/supervisor/services"
	ws "github.com/tomtom215/merkato/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	backfillBatch     = 500
	upgradeIdleWindow = 10 * time.Minute
	perfMaxMetrics    = 1000
	perfSlowThreshold = 500 * time.Millisecond
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Merkato stopped")
}

//nolint:gocyclo // Sequential startup of every component
func run(cfg *config.Config) error {
	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("db_driver", cfg.Database.Driver).
		Str("cache_backend", cfg.Cache.Backend).
		Str("events_backend", cfg.Events.Backend).
		Msg("Starting Merkato with supervisor tree")
	metrics.SetAppInfo(version)

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStart()

	// ========================
	// Storage
	// ========================
	st, err := openStore(startCtx, cfg)
	if err != nil {
		return err
	}
	defer closeWithTimeout("store", st.Close)

	var checks []api.ReadinessCheck
	checks = append(checks, api.ReadinessCheck{Name: "database", Required: true, Check: st.Ping})

	var rdb *redis.Client
	if cfg.Cache.Backend == "redis" || cfg.Security.RateLimitBackend == "redis" {
		rdb, err = cache.NewRedisClient(startCtx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing redis client")
			}
		}()
		checks = append(checks, api.ReadinessCheck{
			Name:     "redis",
			Required: cfg.Security.RateLimitBackend == "redis",
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	switch cfg.Cache.Backend {
	case "memory":
		st.Products = cache.WrapProducts(st.Products, cache.NewMemoryProductCache(cfg.Cache.Capacity, cfg.Cache.ProductTTL))
	case "redis":
		st.Products = cache.WrapProducts(st.Products, cache.NewRedisProductCache(rdb, cfg.Cache.ProductTTL))
	}

	// ========================
	// Analytics and audit trail
	// ========================
	var (
		analyticsStore *analytics.Store
		auditLogger    *audit.Logger
	)
	if cfg.Analytics.Enabled {
		db, err := analytics.Open(&cfg.Analytics)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing analytics database")
			}
		}()

		analyticsStore = analytics.NewStore(db)
		if err := analyticsStore.CreateTables(startCtx); err != nil {
			return fmt.Errorf("create analytics tables: %w", err)
		}
		backfillAnalytics(startCtx, analyticsStore, st)
		checks = append(checks, api.ReadinessCheck{Name: "analytics", Check: analyticsStore.Ping})

		if cfg.Audit.Enabled {
			auditStore := audit.NewDuckDBStore(db)
			if err := auditStore.CreateTable(startCtx); err != nil {
				return fmt.Errorf("create audit table: %w", err)
			}
			auditLogger = audit.NewLogger(auditStore, cfg.Audit)
			defer func() {
				if err := auditLogger.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing audit logger")
				}
			}()
		}
	} else {
		logging.Info().Msg("Analytics disabled (ANALYTICS_ENABLED=false); dashboards fall back to the order store")
	}

	// ========================
	// Email
	// ========================
	mailer, err := notify.NewMailer(&cfg.Email, notify.Site{URL: cfg.Server.PublicURL}, nil)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	defer closeWithTimeout("mailer", mailer.Close)

	// ========================
	// Event bus (starts the embedded NATS server when configured)
	// ========================
	bus, err := events.NewBus(startCtx, &cfg.Events)
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	// ========================
	// Authentication
	// ========================
	tokens, err := auth.NewTokenManager(&cfg.Security)
	if err != nil {
		return err
	}
	revoked, err := auth.OpenRevocationStore(cfg.Security.RevocationStorePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := revoked.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing revocation store")
		}
	}()
	hasher := auth.NewHasher(cfg.Security.BcryptCost)
	ips := auth.NewIPResolver(cfg.Security.TrustedProxies)
	upgrades := auth.NewUpgradeLimiter(cfg.Security.WSUpgradesPerSecond, cfg.Security.WSUpgradeBurst)

	var (
		limiter       auth.RateLimiter
		memoryLimiter *auth.SlidingWindowLimiter
	)
	if cfg.Security.RateLimitBackend == "redis" {
		limiter = auth.NewRedisSlidingWindowLimiter(rdb, cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow)
	} else {
		memoryLimiter = auth.NewSlidingWindowLimiter(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow)
		limiter = memoryLimiter
	}

	enforcer, err := authz.NewEnforcer(cfg.Security.Casbin)
	if err != nil {
		return fmt.Errorf("create authorization enforcer: %w", err)
	}
	defer enforcer.Close()

	// ========================
	// Services and HTTP API
	// ========================
	hub := ws.NewHub()

	svc, err := service.New(service.Deps{
		Store:     st,
		Config:    cfg,
		Tokens:    tokens,
		Hasher:    hasher,
		Revoked:   revoked,
		Mailer:    mailer,
		Events:    bus,
		Audit:     auditLogger,
		Analytics: analyticsStore,
		Pusher:    hub,
	})
	if err != nil {
		return err
	}

	handler, err := api.NewHandler(api.HandlerDeps{
		Services: svc,
		Config:   cfg,
		Auth:     auth.NewAuthenticator(tokens, revoked, st.Users.GetByID),
		IPs:      ips,
		Hub:      hub,
		Upgrades: upgrades,
		Perf:     middleware.NewPerformanceMonitor(perfMaxMetrics, perfSlowThreshold),
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return err
	}
	chiMiddleware := api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Security), ips, limiter)
	router := api.NewRouter(handler, chiMiddleware, enforcer)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// ========================
	// Supervisor tree
	// ========================
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if auditLogger != nil {
		tree.AddDataService(auditLogger)
	}
	tree.AddDataService(revoked)
	if memoryLimiter != nil {
		tree.AddDataService(memoryLimiter)
	}
	tree.AddDataService(services.NewPeriodicService("ws-upgrade-eviction", func(context.Context) error {
		if n := upgrades.Cleanup(upgradeIdleWindow); n > 0 {
			logging.Debug().Int("evicted", n).Msg("Evicted idle WebSocket upgrade limiters")
		}
		return nil
	}, services.PeriodicConfig{Interval: upgradeIdleWindow}))

	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewEventRouterService(func() (services.EventRouter, error) {
		r, err := events.NewRouter(bus, events.RouterConfigFrom(&cfg.Events))
		if err != nil {
			return nil, err
		}
		if analyticsStore != nil {
			if err := events.RegisterAnalytics(r, analyticsStore); err != nil {
				_ = r.Close()
				return nil, err
			}
		}
		if err := events.RegisterNotifications(r, svc.Notifications); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	}))

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	// ========================
	// Run until signalled
	// ========================
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", server.Addr).Msg("Merkato is running")

	var serveErr error
	select {
	case <-ctx.Done():
		serveErr = <-errCh
	case serveErr = <-errCh:
		cancel()
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree stopped with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err != nil {
		logging.Warn().Err(err).Msg("Could not collect unstopped service report")
	} else {
		for _, u := range report {
			logging.Warn().Str("service", u.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	logging.Info().Msg("Supervisor tree stopped; releasing clients")
	return nil
}

// openStore connects the configured document store.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg.Database.Driver == "memory" {
		logging.Warn().Msg("Using the in-memory store; data is lost on restart")
		return memstore.NewStore(), nil
	}

	m, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if cfg.Database.EnsureIndexes {
		if err := m.EnsureIndexes(ctx); err != nil {
			_ = m.Close(context.Background())
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
	}
	logging.Info().Str("database", cfg.Database.Name).Msg("MongoDB connected")
	return m.Store(), nil
}

// backfillAnalytics loads existing orders into an empty fact store so the
// dashboards survive a lost DuckDB file. Failures are logged only.
func backfillAnalytics(ctx context.Context, a *analytics.Store, st *store.Store) {
	n, err := a.Count(ctx)
	if err != nil || n > 0 {
		return
	}

	total := 0
	for page := 1; ; page++ {
		orders, _, err := st.Orders.List(ctx, store.OrderFilter{Page: store.Page{Page: page, Limit: backfillBatch}})
		if err != nil {
			logging.Warn().Err(err).Msg("Analytics backfill stopped early")
			break
		}
		batch := make([]*models.Order, len(orders))
		for i := range orders {
			batch[i] = &orders[i]
		}
		added, err := a.Backfill(ctx, batch)
		if err != nil {
			logging.Warn().Err(err).Msg("Analytics backfill stopped early")
			break
		}
		total += added
		if len(orders) < backfillBatch {
			break
		}
	}
	if total > 0 {
		logging.Info().Int("orders", total).Msg("Analytics backfilled from order store")
	}
}

func closeWithTimeout(name string, closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := closeFn(ctx); err != nil {
		logging.Error().Err(err).Str("component", name).Msg("Error during shutdown")
	}
}
