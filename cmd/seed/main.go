// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

// Command seed creates the MongoDB indexes and loads the demo accounts and
// catalog. Running it twice is harmless; --reset drops the database first.
//
//	SEED_ADMIN_PASSWORD=... go run ./cmd/seed --reset
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tomtom215/merkato/internal/auth"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/database"
	"github.com/tomtom215/merkato/internal/logging"
)

const defaultDemoPassword = "merkato-demo"

type options struct {
	Reset         bool
	Force         bool
	NoProducts    bool
	AdminEmail    string
	AdminPassword string
	DemoPassword  string
	Timeout       time.Duration
}

// parseFlags reads the command line, falling back to SEED_* variables for
// the credentials.
func parseFlags(args []string, getenv func(string) string, out io.Writer) (options, error) {
	var o options

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.BoolVar(&o.Reset, "reset", false, "Drop the database before seeding")
	fs.BoolVar(&o.Force, "force", false, "Allow --reset when ENVIRONMENT=production")
	fs.BoolVar(&o.NoProducts, "no-products", false, "Create accounts only")
	fs.StringVar(&o.AdminEmail, "admin-email", "", "Admin account email (or SEED_ADMIN_EMAIL)")
	fs.StringVar(&o.AdminPassword, "admin-password", "", "Admin account password (prefer SEED_ADMIN_PASSWORD)")
	fs.StringVar(&o.DemoPassword, "demo-password", "", "Password shared by demo accounts (or SEED_DEMO_PASSWORD)")
	fs.DurationVar(&o.Timeout, "timeout", 2*time.Minute, "Overall deadline")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if o.AdminEmail == "" {
		o.AdminEmail = getenv("SEED_ADMIN_EMAIL")
	}
	if o.AdminPassword == "" {
		o.AdminPassword = getenv("SEED_ADMIN_PASSWORD")
	}
	if o.AdminPassword == "" {
		return options{}, errors.New("admin password required (use --admin-password or SEED_ADMIN_PASSWORD)")
	}
	if len(o.AdminPassword) < 8 {
		return options{}, errors.New("admin password must be at least 8 characters")
	}
	if o.DemoPassword == "" {
		o.DemoPassword = getenv("SEED_DEMO_PASSWORD")
	}
	if o.DemoPassword == "" {
		o.DemoPassword = defaultDemoPassword
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg, opts); err != nil {
		logging.Fatal().Err(err).Msg("Seed failed")
	}
}

func run(cfg *config.Config, opts options) error {
	if cfg.Database.Driver != "mongo" {
		return fmt.Errorf("seed requires DB_DRIVER=mongo, got %q", cfg.Database.Driver)
	}
	if opts.Reset && cfg.Server.Environment == "production" && !opts.Force {
		return errors.New("refusing --reset in production without --force")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	m, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		if err := m.Close(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Error closing MongoDB client")
		}
	}()

	if opts.Reset {
		if err := m.Drop(ctx); err != nil {
			return fmt.Errorf("drop database: %w", err)
		}
		logging.Warn().Str("database", cfg.Database.Name).Msg("Database dropped")
	}

	if err := m.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logging.Info().Msg("Indexes ensured")

	hasher := auth.NewHasher(cfg.Security.BcryptCost)
	res, err := database.Seed(ctx, m.Store(), hasher.Hash, database.SeedOptions{
		AdminEmail:    opts.AdminEmail,
		AdminPassword: opts.AdminPassword,
		DemoPassword:  opts.DemoPassword,
		Products:      !opts.NoProducts,
	})
	if err != nil {
		return err
	}

	logging.Info().
		Int("users_created", res.UsersCreated).
		Int("users_skipped", res.UsersSkipped).
		Int("products_created", res.ProductsCreated).
		Msg("Seed complete")
	return nil
}
