// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package queue carries moderation run requests from the API to the worker
// over Watermill. Two backends are supported:
//
//   - memory: a gochannel pub/sub, for a worker embedded in cmd/server
//   - nats:   NATS JetStream, for a standalone cmd/worker
//
// Messages are acknowledged on receipt. A run can take longer than any
// sensible redelivery window, and its outcome is tracked by the job status,
// so a redelivered request would only start a duplicate run.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/jobs"
	"github.com/tomtom215/mangaguard/internal/logging"
	"github.com/tomtom215/mangaguard/internal/metrics"
)

// Metadata keys set on every run message.
const (
	MetadataRunID         = "run_id"
	MetadataCorrelationID = "correlation_id"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("queue is closed")

// Handler executes one run request.
type Handler func(ctx context.Context, req jobs.RunRequest) error

// Queue publishes and consumes run requests on one topic.
type Queue struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string

	mu     sync.RWMutex
	closed bool
}

// New creates a queue from cfg. For the nats backend natsURL overrides
// cfg.NATS.URL (used with the embedded server); pass "" to keep it.
func New(cfg *config.QueueConfig, natsURL string) (*Queue, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	switch cfg.Backend {
	case "memory":
		pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, logger)
		return newQueue(pubsub, pubsub, cfg.Topic), nil
	case "nats":
		nc := cfg.NATS
		if natsURL != "" {
			nc.URL = natsURL
		}
		pub, err := newNATSPublisher(&nc, logger)
		if err != nil {
			return nil, err
		}
		sub, err := newNATSSubscriber(&nc, logger)
		if err != nil {
			_ = pub.Close()
			return nil, err
		}
		return newQueue(pub, sub, cfg.Topic), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

func newQueue(pub message.Publisher, sub message.Subscriber, topic string) *Queue {
	return &Queue{publisher: pub, subscriber: sub, topic: topic}
}

// Enqueue implements jobs.Enqueuer.
func (q *Queue) Enqueue(ctx context.Context, req jobs.RunRequest) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal run request: %w", err)
	}
	msg := message.NewMessage(req.RunID, payload)
	msg.Metadata.Set(MetadataRunID, req.RunID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}

	if err := q.publisher.Publish(q.topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", q.topic, err)
	}
	metrics.RecordQueuePublish()
	return nil
}

// Consume delivers run requests to handle until ctx is done or the
// subscription closes. Requests are handled one at a time.
func (q *Queue) Consume(ctx context.Context, handle Handler) error {
	messages, err := q.subscriber.Subscribe(ctx, q.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", q.topic, err)
	}
	logging.Info().Str("topic", q.topic).Msg("Consuming moderation run requests")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			q.process(ctx, msg, handle)
		}
	}
}

func (q *Queue) process(ctx context.Context, msg *message.Message, handle Handler) {
	msg.Ack()

	msgCtx := ctx
	if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
		msgCtx = logging.ContextWithCorrelationID(ctx, id)
	}
	log := logging.Ctx(msgCtx)

	var req jobs.RunRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil || req.RunID == "" {
		metrics.RecordQueueConsume("invalid")
		log.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed run request")
		return
	}

	if err := handle(msgCtx, req); err != nil {
		metrics.RecordQueueConsume("error")
		log.Error().Err(err).Str("run_id", req.RunID).Msg("Run request failed")
		return
	}
	metrics.RecordQueueConsume("success")
}

// Close shuts down the publisher and subscriber. Safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true

	var errs []error
	if err := q.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	// gochannel is its own subscriber.
	if any(q.subscriber) != any(q.publisher) {
		if err := q.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	return errors.Join(errs...)
}
