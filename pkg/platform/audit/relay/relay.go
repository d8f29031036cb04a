// Package relay drains the audit outbox into Kafka. Postgres is the write
// path; Kafka is the durable spine compliance consumers read from. The relay
// is at-least-once: a crash between produce and mark re-sends, and consumers
// dedupe on event ID.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"civicflow/pkg/platform/audit/store/postgres"
)

// Package-level collectors so restarts of the relay never double-register.
var (
	relayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicflow_audit_relayed_total",
		Help: "Audit events produced to the broker and marked published",
	})
	produceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicflow_audit_relay_failures_total",
		Help: "Audit produce attempts that returned an error",
	})
	outboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civicflow_audit_outbox_backlog",
		Help: "Unpublished outbox rows seen on the last drain tick",
	})
)

// OutboxSource supplies unpublished outbox rows and records delivery.
// Implemented by the postgres audit store.
type OutboxSource interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.OutboxRecord, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer abstracts the Kafka client so unit tests can run without a broker.
type Producer interface {
	Produce(ctx context.Context, key string, value []byte) error
}

// Relay polls the outbox and produces each record to the audit topic.
type Relay struct {
	source   OutboxSource
	producer Producer
	logger   *slog.Logger

	interval  time.Duration
	batchSize int
}

type Option func(r *Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		r.interval = d
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		r.batchSize = n
	}
}

func New(source OutboxSource, producer Producer, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		producer:  producer,
		logger:    logger,
		interval:  time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. Delivery failures are logged and retried
// on the next tick; the outbox row stays unpublished until Kafka accepts it.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "audit relay drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drainOnce(ctx context.Context) error {
	records, err := r.source.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("fetch outbox: %w", err)
	}
	outboxBacklog.Set(float64(len(records)))
	if len(records) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		if err := r.producer.Produce(ctx, rec.EventID.String(), rec.Payload); err != nil {
			// Stop the batch: preserve outbox ordering per entity.
			produceFailures.Inc()
			r.logger.ErrorContext(ctx, "audit produce failed",
				"event_id", rec.EventID,
				"error", err,
			)
			break
		}
		published = append(published, rec.ID)
	}

	if len(published) == 0 {
		return nil
	}
	if err := r.source.MarkPublished(ctx, published); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	relayedTotal.Add(float64(len(published)))
	r.logger.DebugContext(ctx, "audit events relayed", "count", len(published))
	return nil
}

// -----------------------------------------------------------------------------
// Kafka producer
// -----------------------------------------------------------------------------

// KafkaProducer produces audit payloads to one topic with synchronous acks.
type KafkaProducer struct {
	client *kgo.Client
	topic  string
}

// NewKafkaProducer connects to the brokers and ensures the audit topic
// exists. Topic creation races are tolerated.
func NewKafkaProducer(ctx context.Context, brokers []string, topic string) (*KafkaProducer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	for _, res := range resp {
		if res.Err != nil && res.Err != kerr.TopicAlreadyExists {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic %s: %w", res.Topic, res.Err)
		}
	}

	return &KafkaProducer{client: client, topic: topic}, nil
}

// Produce sends one record keyed by event ID so replays land in the same
// partition.
func (p *KafkaProducer) Produce(ctx context.Context, key string, value []byte) error {
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() {
	p.client.Close()
}
