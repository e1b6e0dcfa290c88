// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/mangaguard/internal/queue"
)

// ErrSubscriptionClosed is returned when the queue closes the subscription
// while the service is still meant to run.
var ErrSubscriptionClosed = errors.New("run queue subscription closed")

// Consumer is satisfied by *queue.Queue.
type Consumer interface {
	Consume(ctx context.Context, handle queue.Handler) error
}

// ConsumerService runs a queue consumer under supervision.
type ConsumerService struct {
	consumer Consumer
	handle   queue.Handler
	name     string
}

// NewConsumerService wraps consumer. Every delivered request goes to handle.
func NewConsumerService(consumer Consumer, handle queue.Handler) *ConsumerService {
	return &ConsumerService{
		consumer: consumer,
		handle:   handle,
		name:     "run-consumer",
	}
}

// Serve implements suture.Service. Any return before ctx is done is a
// failure, so the supervisor resubscribes.
func (c *ConsumerService) Serve(ctx context.Context) error {
	err := c.consumer.Consume(ctx, c.handle)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return ErrSubscriptionClosed
	}
	return fmt.Errorf("%s: %w", c.name, err)
}

// String implements fmt.Stringer.
func (c *ConsumerService) String() string {
	return c.name
}
