// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// MinJWTSecretLength is the minimum accepted HS256 secret length in bytes.
const MinJWTSecretLength = 32

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateAPI,
		c.validateDatabase,
		c.validateCache,
		c.validateSecurity,
		c.validateEmail,
		c.validateEvents,
		c.validateOrders,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, production or test, got %q", c.Server.Environment)
	}
	if c.Server.PublicURL != "" {
		u, err := url.Parse(c.Server.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("PUBLIC_URL must be an absolute http(s) URL, got %q", c.Server.PublicURL)
		}
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be positive")
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("API_MAX_PAGE_SIZE (%d) must be >= API_DEFAULT_PAGE_SIZE (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "memory":
		return nil
	case "mongo":
	default:
		return fmt.Errorf("DB_DRIVER must be mongo or memory, got %q", c.Database.Driver)
	}
	if !strings.HasPrefix(c.Database.URI, "mongodb://") && !strings.HasPrefix(c.Database.URI, "mongodb+srv://") {
		return fmt.Errorf("MONGO_URI must start with mongodb:// or mongodb+srv://")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("MONGO_DATABASE is required")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory, redis or none, got %q", c.Cache.Backend)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := c.Security
	if len(s.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if s.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if s.BcryptCost < 4 || s.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", s.BcryptCost)
	}
	if !s.RateLimitDisabled {
		if s.RateLimitReqs < 1 || s.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
		}
		switch s.RateLimitBackend {
		case "memory":
		case "redis":
			if c.Redis.Addr == "" {
				return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
			}
		default:
			return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", s.RateLimitBackend)
		}
	}
	if c.Server.IsProduction() {
		for _, o := range s.CORSOrigins {
			if o == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain * in production")
			}
		}
	}
	return nil
}

func (c *Config) validateEmail() error {
	if !c.Email.Enabled {
		return nil
	}
	if c.Email.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when EMAIL_ENABLED=true")
	}
	if c.Email.SMTPPort < 1 || c.Email.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535")
	}
	if !strings.Contains(c.Email.FromAddress, "@") {
		return fmt.Errorf("EMAIL_FROM must be an email address")
	}
	if c.Email.BulkDelay < 0 {
		return fmt.Errorf("EMAIL_BULK_DELAY must not be negative")
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "memory":
	case "nats":
		if c.Events.NATSURL == "" && !c.Events.EmbeddedServer {
			return fmt.Errorf("NATS_URL is required when EVENTS_BACKEND=nats without NATS_EMBEDDED")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be memory or nats, got %q", c.Events.Backend)
	}
	if c.Events.PoisonTopic == "" {
		return fmt.Errorf("EVENTS_POISON_TOPIC is required")
	}
	return nil
}

func (c *Config) validateOrders() error {
	o := c.Orders
	if o.VATRate < 0 || o.VATRate >= 1 {
		return fmt.Errorf("ORDER_VAT_RATE must be in [0, 1), got %v", o.VATRate)
	}
	if o.DeliveryFee < 0 || o.FreeDeliveryThreshold < 0 {
		return fmt.Errorf("ORDER_DELIVERY_FEE and ORDER_FREE_DELIVERY_THRESHOLD must not be negative")
	}
	if o.Currency == "" {
		return fmt.Errorf("ORDER_CURRENCY is required")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
