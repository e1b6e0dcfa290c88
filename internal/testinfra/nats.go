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
	// DefaultNATSImage is the NATS image used for queue tests.
	DefaultNATSImage = "nats:2.10-alpine"

	natsPort = "4222/tcp"
)

// NATSContainer is a running NATS server with JetStream enabled.
type NATSContainer struct {
	testcontainers.Container
	// URL is the nats:// client URL.
	URL string
}

// NewNATSContainer starts NATS with JetStream and waits for the client port.
func NewNATSContainer(ctx context.Context, opts ...Option) (*NATSContainer, error) {
	cfg := newConfig(DefaultNATSImage, opts)

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{natsPort},
		Cmd:          []string{"-js"},
		WaitingFor: wait.ForAll(
			listening(natsPort, cfg.startTimeout),
			wait.ForLog("Server is ready"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, addr, err := startContainer(ctx, req, natsPort)
	if err != nil {
		return nil, err
	}
	return &NATSContainer{Container: container, URL: "nats://" + addr}, nil
}
