// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/merkato/config.yaml",
	"/etc/merkato/config.yml",
}

const (
	// ConfigPathEnvVar points at an explicit YAML file.
	ConfigPathEnvVar = "CONFIG_PATH"

	// DotEnvPathEnvVar points at an explicit .env file.
	DotEnvPathEnvVar = "DOTENV_PATH"
)

// Defaults returns the built-in configuration without reading any file or
// environment variable. Tests and the seed command start from it.
func Defaults() *Config { return defaultConfig() }

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
			PublicURL:       "http://localhost:3000",
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Database: DatabaseConfig{
			Driver:         "mongo",
			URI:            "mongodb://localhost:27017",
			Name:           "merkato",
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    50,
			EnsureIndexes:  true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 20,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			ProductTTL: 5 * time.Minute,
			Capacity:   5000,
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			Path:          "/data/merkato-analytics.duckdb",
			MaxMemory:     "1GB",
			Threads:       0,
			DashboardDays: 30,
		},
		Security: SecurityConfig{
			TokenTTL:            7 * 24 * time.Hour,
			BcryptCost:          12,
			RateLimitReqs:       100,
			RateLimitWindow:     15 * time.Minute,
			RateLimitBackend:    "memory",
			CORSOrigins:         []string{"http://localhost:3000"},
			TrustedProxies:      []string{},
			WSUpgradesPerSecond: 1,
			WSUpgradeBurst:      5,
			Casbin: CasbinConfig{
				CacheEnabled: true,
				CacheTTL:     5 * time.Minute,
			},
		},
		Email: EmailConfig{
			Enabled:        false,
			SMTPPort:       587,
			FromAddress:    "noreply@merkato.et",
			FromName:       "Merkato",
			StartTLS:       true,
			Timeout:        30 * time.Second,
			BulkDelay:      100 * time.Millisecond,
			SupportAddress: "support@merkato.et",
		},
		Events: EventsConfig{
			Backend:          "memory",
			NATSURL:          "nats://127.0.0.1:4222",
			EmbeddedServer:   false,
			StoreDir:         "/data/nats",
			SubscribersCount: 2,
			DurablePrefix:    "merkato",
			RetryCount:       3,
			RetryInterval:    200 * time.Millisecond,
			PoisonTopic:      "merkato.poison",
			CloseTimeout:     15 * time.Second,
		},
		Orders: OrdersConfig{
			Currency:              "ETB",
			VATRate:               0.15,
			DeliveryFee:           100,
			FreeDeliveryThreshold: 2000,
			LowStockThreshold:     5,
		},
		Audit: AuditConfig{
			Enabled:         true,
			RetentionDays:   180,
			BufferSize:      1000,
			CleanupInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, file and environment and
// validates the result.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotEnv reads DOTENV_PATH or ./.env if present. A missing file is not
// an error; a malformed one is.
func loadDotEnv() error {
	path := os.Getenv(DotEnvPathEnvVar)
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := splitAndTrim(s)
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func splitAndTrim(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"http_host":        "server.host",
	"http_port":        "server.port",
	"port":             "server.port",
	"server_timeout":   "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",
	"public_url":       "server.public_url",

	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",

	"db_driver":             "database.driver",
	"mongo_uri":             "database.uri",
	"mongodb_uri":           "database.uri",
	"mongo_database":        "database.name",
	"mongo_connect_timeout": "database.connect_timeout",
	"mongo_max_pool_size":   "database.max_pool_size",
	"mongo_ensure_indexes":  "database.ensure_indexes",

	"redis_addr":      "redis.addr",
	"redis_password":  "redis.password",
	"redis_db":        "redis.db",
	"redis_pool_size": "redis.pool_size",

	"cache_backend":      "cache.backend",
	"product_cache_ttl":  "cache.product_ttl",
	"product_cache_size": "cache.capacity",

	"analytics_enabled":        "analytics.enabled",
	"analytics_db_path":        "analytics.path",
	"analytics_max_memory":     "analytics.max_memory",
	"analytics_threads":        "analytics.threads",
	"analytics_dashboard_days": "analytics.dashboard_days",

	"jwt_secret":             "security.jwt_secret",
	"jwt_ttl":                "security.token_ttl",
	"bcrypt_cost":            "security.bcrypt_cost",
	"rate_limit_requests":    "security.rate_limit_reqs",
	"rate_limit_window":      "security.rate_limit_window",
	"disable_rate_limit":     "security.rate_limit_disabled",
	"rate_limit_backend":     "security.rate_limit_backend",
	"cors_origins":           "security.cors_origins",
	"trusted_proxies":        "security.trusted_proxies",
	"revocation_store_path":  "security.revocation_store_path",
	"ws_upgrades_per_second": "security.ws_upgrades_per_second",
	"ws_upgrade_burst":       "security.ws_upgrade_burst",
	"casbin_model_path":      "security.casbin.model_path",
	"casbin_policy_path":     "security.casbin.policy_path",
	"casbin_cache_enabled":   "security.casbin.cache_enabled",
	"casbin_cache_ttl":       "security.casbin.cache_ttl",

	"email_enabled":    "email.enabled",
	"smtp_host":        "email.smtp_host",
	"smtp_port":        "email.smtp_port",
	"smtp_username":    "email.username",
	"smtp_password":    "email.password",
	"smtp_start_tls":   "email.start_tls",
	"smtp_timeout":     "email.timeout",
	"email_from":       "email.from_address",
	"email_from_name":  "email.from_name",
	"email_bulk_delay": "email.bulk_delay",
	"email_support":    "email.support_address",

	"events_backend":        "events.backend",
	"nats_url":              "events.nats_url",
	"nats_embedded":         "events.embedded_server",
	"nats_store_dir":        "events.store_dir",
	"nats_subscribers":      "events.subscribers_count",
	"nats_durable_prefix":   "events.durable_prefix",
	"events_retry_count":    "events.retry_count",
	"events_retry_interval": "events.retry_interval",
	"events_poison_topic":   "events.poison_topic",
	"events_close_timeout":  "events.close_timeout",

	"order_currency":                "orders.currency",
	"order_vat_rate":                "orders.vat_rate",
	"order_delivery_fee":            "orders.delivery_fee",
	"order_free_delivery_threshold": "orders.free_delivery_threshold",
	"low_stock_threshold":           "orders.low_stock_threshold",

	"audit_enabled":          "audit.enabled",
	"audit_retention_days":   "audit.retention_days",
	"audit_buffer_size":      "audit.buffer_size",
	"audit_cleanup_interval": "audit.cleanup_interval",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
