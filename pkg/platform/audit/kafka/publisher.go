// Package kafka publishes audit outbox entries to a Kafka topic. Kafka is the
// durable transport for the audit trail; the outbox table only buffers events
// until they are produced.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "hearth/pkg/platform/audit"
)

// OutboxSource is the slice of the audit store the publisher needs.
type OutboxSource interface {
	PendingOutbox(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Publisher drains the outbox into a Kafka topic.
type Publisher struct {
	client *kgo.Client
	source OutboxSource
	topic  string
	logger *slog.Logger

	batchSize int
	interval  time.Duration
}

// NewPublisher connects to the given brokers. The topic is created on first
// use if it does not exist.
func NewPublisher(ctx context.Context, brokers []string, topic string, source OutboxSource, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &Publisher{
		client:    client,
		source:    source,
		topic:     topic,
		logger:    logger,
		batchSize: 100,
		interval:  time.Second,
	}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Run drains the outbox on an interval until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.drain(ctx); err != nil {
				p.logger.Error("audit outbox drain failed", "error", err)
			}
		}
	}
}

func (p *Publisher) drain(ctx context.Context) error {
	entries, err := p.source.PendingOutbox(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(entries))
	for i, entry := range entries {
		records[i] = &kgo.Record{
			Topic: p.topic,
			Key:   []byte(entry.EventType),
			Value: entry.Payload,
		}
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit events: %w", err)
	}

	ids := make([]uuid.UUID, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	if err := p.source.MarkPublished(ctx, ids); err != nil {
		return err
	}
	p.logger.Debug("audit events published", "count", len(entries), "topic", p.topic)
	return nil
}

// Close flushes outstanding produces and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}
