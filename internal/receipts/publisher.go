// Package receipts streams append receipts to Kafka.
package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"

	"clearinghouse/internal/document/metrics"
	"clearinghouse/internal/document/models"
)

var ErrClosed = errors.New("receipt publisher closed")

// Publisher produces one record per receipt, keyed by pid so receipts of a
// pid land on one partition in append order. Produce is asynchronous;
// delivery failures are logged and counted, never returned.
type Publisher struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
	closed  atomic.Bool
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(client *kgo.Client, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		client: client,
		topic:  topic,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Publish(ctx context.Context, receipt models.Receipt) error {
	if p.closed.Load() {
		return ErrClosed
	}
	rec, err := p.record(receipt)
	if err != nil {
		return err
	}
	// The record outlives the request that produced it.
	p.client.Produce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		p.metrics.IncrementReceiptsDropped()
		p.logger.Warn("receipt delivery failed",
			"topic", r.Topic,
			"pid", string(r.Key),
			"document_id", receipt.DocumentID,
			"error", err,
		)
	})
	return nil
}

func (p *Publisher) record(receipt models.Receipt) (*kgo.Record, error) {
	value, err := json.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(receipt.Pid),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "document_id", Value: []byte(receipt.DocumentID)},
		},
	}, nil
}

// Close stops accepting receipts, waits for buffered ones until ctx is done
// and closes the client.
func (p *Publisher) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.client.Flush(ctx)
	p.client.Close()
	if err != nil {
		return fmt.Errorf("flush receipts: %w", err)
	}
	return nil
}
