// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

//go:build integration

package testinfra

import (
	"context"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultRedisImage is the Redis image used for status store tests.
	DefaultRedisImage = "redis:7-alpine"

	redisPort = "6379/tcp"
)

// RedisContainer is a running Redis server.
type RedisContainer struct {
	testcontainers.Container
	// Addr is host:port, suitable for config.RedisConfig.Addr.
	Addr string
}

// NewRedisContainer starts Redis and waits until it accepts connections.
func NewRedisContainer(ctx context.Context, opts ...Option) (*RedisContainer, error) {
	cfg := newConfig(DefaultRedisImage, opts)

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{redisPort},
		WaitingFor: wait.ForAll(
			listening(redisPort, cfg.startTimeout),
			wait.ForLog("Ready to accept connections"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, addr, err := startContainer(ctx, req, redisPort)
	if err != nil {
		return nil, err
	}
	return &RedisContainer{Container: container, Addr: addr}, nil
}
