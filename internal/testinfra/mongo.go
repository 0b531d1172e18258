// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DefaultMongoImage = "mongo:7.0"
	mongoPort         = "27017/tcp"
)

// MongoContainer is a disposable MongoDB server.
type MongoContainer struct {
	testcontainers.Container
	URI string
}

// MongoOption configures the Mongo container.
type MongoOption func(*mongoConfig)

type mongoConfig struct {
	image        string
	startTimeout time.Duration
}

func WithMongoImage(image string) MongoOption {
	return func(c *mongoConfig) { c.image = image }
}

func WithMongoStartTimeout(d time.Duration) MongoOption {
	return func(c *mongoConfig) { c.startTimeout = d }
}

// NewMongoContainer starts MongoDB and waits until it accepts connections.
//
//	mongo, err := testinfra.NewMongoContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	testinfra.CleanupContainer(t, mongo)
//	db, err := database.Connect(ctx, &config.DatabaseConfig{URI: mongo.URI, Name: "merkato_test"})
func NewMongoContainer(ctx context.Context, opts ...MongoOption) (*MongoContainer, error) {
	cfg := &mongoConfig{image: DefaultMongoImage, startTimeout: 90 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{mongoPort},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(mongoPort),
			wait.ForLog("Waiting for connections"),
		).WithStartupTimeout(cfg.startTimeout),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create mongo container: %w", err)
	}

	addr, err := endpoint(ctx, container, mongoPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, err
	}
	return &MongoContainer{Container: container, URI: "mongodb://" + addr}, nil
}
