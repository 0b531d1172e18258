// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

// Package config loads Merkato configuration.
//
// Values are layered with koanf: built-in defaults, then an optional YAML
// file (CONFIG_PATH, ./config.yaml or /etc/merkato/config.yaml), then
// environment variables. A .env file in the working directory is read first
// so that local development can keep secrets out of the YAML file. Variables
// already present in the environment always win over .env.
package config

import (
	"time"
)

// Config is the complete application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	API        APIConfig        `koanf:"api"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Cache      CacheConfig      `koanf:"cache"`
	Analytics  AnalyticsConfig  `koanf:"analytics"`
	Security   SecurityConfig   `koanf:"security"`
	Email      EmailConfig      `koanf:"email"`
	Events     EventsConfig     `koanf:"events"`
	Orders     OrdersConfig     `koanf:"orders"`
	Audit      AuditConfig      `koanf:"audit"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is development or production. Production enables the
	// stricter checks in validateSecurity.
	Environment string `koanf:"environment"`

	// PublicURL is the storefront base URL used in email links.
	PublicURL string `koanf:"public_url"`
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// APIConfig holds pagination limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// DatabaseConfig selects and configures the document store.
type DatabaseConfig struct {
	// Driver is "mongo" or "memory". The memory driver keeps everything in
	// process and is intended for development and demos.
	Driver         string        `koanf:"driver"`
	URI            string        `koanf:"uri"`
	Name           string        `koanf:"name"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MaxPoolSize    uint64        `koanf:"max_pool_size"`
	EnsureIndexes  bool          `koanf:"ensure_indexes"`
}

// RedisConfig is shared by the Redis rate limiter and product cache.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	PoolSize int    `koanf:"pool_size"`
}

// CacheConfig controls the product detail cache.
type CacheConfig struct {
	// Backend is "memory" (in-process LRU), "redis" or "none".
	Backend    string        `koanf:"backend"`
	ProductTTL time.Duration `koanf:"product_ttl"`
	Capacity   int           `koanf:"capacity"`
}

// AnalyticsConfig configures the DuckDB sales fact store. The audit trail
// shares the same database file.
type AnalyticsConfig struct {
	Enabled bool `koanf:"enabled"`

	// Path is a DuckDB file path or ":memory:".
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`

	// DashboardDays is the default window for revenue-by-day charts.
	DashboardDays int `koanf:"dashboard_days"`
}

// SecurityConfig holds authentication, rate limiting and CORS settings.
type SecurityConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// RateLimitBackend is "memory" or "redis".
	RateLimitBackend string `koanf:"rate_limit_backend"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`

	// RevocationStorePath is the badger directory for revoked tokens.
	// Empty keeps revocations in memory only.
	RevocationStorePath string `koanf:"revocation_store_path"`

	// WebSocket upgrade limiting per client IP.
	WSUpgradesPerSecond float64 `koanf:"ws_upgrades_per_second"`
	WSUpgradeBurst      int     `koanf:"ws_upgrade_burst"`

	Casbin CasbinConfig `koanf:"casbin"`
}

// CasbinConfig holds RBAC settings. The model and policy are embedded in
// the authz package; ModelPath and PolicyPath override them.
type CasbinConfig struct {
	ModelPath    string        `koanf:"model_path"`
	PolicyPath   string        `koanf:"policy_path"`
	CacheEnabled bool          `koanf:"cache_enabled"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
}

// EmailConfig holds SMTP and dispatch settings.
type EmailConfig struct {
	// Enabled sends through SMTP. When false, emails are rendered and logged.
	Enabled     bool          `koanf:"enabled"`
	SMTPHost    string        `koanf:"smtp_host"`
	SMTPPort    int           `koanf:"smtp_port"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	FromAddress string        `koanf:"from_address"`
	FromName    string        `koanf:"from_name"`
	StartTLS    bool          `koanf:"start_tls"`
	Timeout     time.Duration `koanf:"timeout"`

	// BulkDelay is the pause between recipients in a bulk send.
	BulkDelay time.Duration `koanf:"bulk_delay"`

	SupportAddress string `koanf:"support_address"`
}

// EventsConfig selects the event bus transport.
type EventsConfig struct {
	// Backend is "memory" (watermill gochannel) or "nats" (JetStream).
	Backend          string        `koanf:"backend"`
	NATSURL          string        `koanf:"nats_url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	SubscribersCount int           `koanf:"subscribers_count"`
	DurablePrefix    string        `koanf:"durable_prefix"`
	RetryCount       int           `koanf:"retry_count"`
	RetryInterval    time.Duration `koanf:"retry_interval"`
	PoisonTopic      string        `koanf:"poison_topic"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// OrdersConfig holds pricing rules applied at checkout.
type OrdersConfig struct {
	Currency              string  `koanf:"currency"`
	VATRate               float64 `koanf:"vat_rate"`
	DeliveryFee           float64 `koanf:"delivery_fee"`
	FreeDeliveryThreshold float64 `koanf:"free_delivery_threshold"`
	LowStockThreshold     int     `koanf:"low_stock_threshold"`
}

// AuditConfig controls the admin audit trail.
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	RetentionDays   int           `koanf:"retention_days"`
	BufferSize      int           `koanf:"buffer_size"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// SupervisorConfig tunes restart behavior of the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
