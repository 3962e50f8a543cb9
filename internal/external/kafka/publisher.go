package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"fsmbus/internal/messaging"
	"fsmbus/pkg/correlation"
	"fsmbus/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -source publisher.go -destination mock_writer.go -package kafka

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherConfig configures the Publisher.
type PublisherConfig struct {
	// Enabled=false makes Connect and every send a logged no-op.
	Enabled bool
	Writer  WriterConfig
}

// Publisher implements messaging.Publisher using Kafka.
// A single writer is shared by all callers; kafka.Writer is safe for concurrent use.
type Publisher struct {
	cfg      PublisherConfig
	client   *Client
	resolver *messaging.TopicResolver
	logger   *slog.Logger

	connected atomic.Bool
	writer    MessageWriter

	ping      func(ctx context.Context) error
	newWriter func() MessageWriter
	now       func() time.Time
}

var _ messaging.Publisher = (*Publisher)(nil)

// NewPublisher creates a new Kafka publisher. client may be nil when publishing is disabled.
func NewPublisher(l *slog.Logger, client *Client, resolver *messaging.TopicResolver, cfg PublisherConfig) *Publisher {
	if l == nil {
		l = slog.Default()
	}
	p := &Publisher{
		cfg:      cfg,
		client:   client,
		resolver: resolver,
		logger:   l.With("component", "kafka.publisher"),
		now:      time.Now,
	}
	if client != nil {
		p.ping = client.Ping
		p.newWriter = func() MessageWriter { return client.NewWriter(cfg.Writer) }
	}
	return p
}

// Connect establishes the broker session. Failures are logged and swallowed so the process can
// boot without a broker; IsConnected reports the outcome.
func (p *Publisher) Connect(ctx context.Context) error {
	if !p.cfg.Enabled {
		p.logger.WarnContext(ctx, "Kafka publishing disabled, sends will be skipped")
		return nil
	}
	if p.connected.Load() {
		return nil
	}
	if p.ping == nil || p.newWriter == nil {
		p.logger.ErrorContext(ctx, "Kafka publisher has no client configured")
		return nil
	}

	if err := p.ping(ctx); err != nil {
		p.logger.ErrorContext(ctx, "Failed to connect Kafka publisher", "brokers", p.Brokers(), slog.Any("error", err))
		return nil
	}

	p.writer = p.newWriter()
	p.connected.Store(true)
	p.logger.InfoContext(ctx, "Kafka publisher connected", "brokers", p.Brokers())
	return nil
}

// IsConnected reports whether the publisher has a live writer.
func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}

// Brokers returns the broker endpoint list.
func (p *Publisher) Brokers() []string {
	if p.client == nil {
		return nil
	}
	return p.client.Brokers()
}

// Send serializes msg and writes it to topic. It returns nil metadata without error when the
// publisher is disabled or not connected.
func (p *Publisher) Send(ctx context.Context, topic string, msg messaging.OutboundMessage) (*messaging.Metadata, error) {
	if !p.ready(ctx, topic, 1) {
		return nil, nil
	}

	km, err := p.encode(topic, msg)
	if err != nil {
		return nil, err
	}

	if err := p.write(ctx, topic, km); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish message", "topic", topic, "key", msg.Key, slog.Any("error", err))
		return nil, fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "Message published", "topic", topic, "key", msg.Key)
	return &messaging.Metadata{Topic: topic, Key: msg.Key, Count: 1, Timestamp: km.Time}, nil
}

// SendBatch writes all messages to topic in a single call. Atomicity holds only at the
// wire-protocol batch level.
func (p *Publisher) SendBatch(ctx context.Context, topic string, msgs []messaging.OutboundMessage) (*messaging.Metadata, error) {
	if !p.ready(ctx, topic, len(msgs)) {
		return nil, nil
	}
	if len(msgs) == 0 {
		return &messaging.Metadata{Topic: topic, Timestamp: p.now().UTC()}, nil
	}

	batch := make([]kafka.Message, 0, len(msgs))
	for i, msg := range msgs {
		km, err := p.encode(topic, msg)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		batch = append(batch, km)
	}

	if err := p.write(ctx, topic, batch...); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish batch", "topic", topic, "count", len(batch), slog.Any("error", err))
		return nil, fmt.Errorf("publish batch to %s: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "Batch published", "topic", topic, "count", len(batch))
	return &messaging.Metadata{Topic: topic, Count: len(batch), Timestamp: batch[0].Time}, nil
}

// SendEvent wraps payload in an Envelope and publishes it to the topic derived from the event
// name, keyed by the event ID. An empty correlationID falls back to the one carried by ctx.
func (p *Publisher) SendEvent(ctx context.Context, eventName string, payload any, correlationID string) (*messaging.Metadata, error) {
	if correlationID == "" {
		correlationID = correlation.FromContext(ctx)
	}

	env := messaging.NewEnvelope(eventName, payload, correlationID)
	topic := p.resolver.ForEvent(eventName)

	md, err := p.Send(ctx, topic, messaging.OutboundMessage{
		Key:     env.EventID,
		Value:   env,
		Headers: env.Headers(),
	})
	if err != nil {
		return nil, fmt.Errorf("send event %s: %w", eventName, err)
	}
	if md != nil {
		p.logger.InfoContext(ctx, "Event published", "event_name", eventName, "event_id", env.EventID, "topic", topic)
	}
	return md, nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if !p.connected.Swap(false) {
		return nil
	}
	return p.writer.Close()
}

func (p *Publisher) ready(ctx context.Context, topic string, count int) bool {
	if p.cfg.Enabled && p.connected.Load() {
		return true
	}
	reason := "publisher not connected"
	if !p.cfg.Enabled {
		reason = "publishing disabled"
	}
	p.logger.WarnContext(ctx, "Skipping publish", "topic", topic, "count", count, "reason", reason)
	metrics.KafkaMessagesPublished.WithLabelValues(topic, metrics.StatusSkipped).Add(float64(count))
	return false
}

func (p *Publisher) encode(topic string, msg messaging.OutboundMessage) (kafka.Message, error) {
	var value []byte
	switch v := msg.Value.(type) {
	case []byte:
		value = v
	case json.RawMessage:
		value = v
	default:
		var err error
		value, err = json.Marshal(v)
		if err != nil {
			return kafka.Message{}, fmt.Errorf("marshal message for %s: %w", topic, err)
		}
	}

	km := kafka.Message{
		Topic:   topic,
		Value:   value,
		Headers: messaging.ToKafkaHeaders(msg.Headers),
		Time:    p.now().UTC(),
	}
	if msg.Key != "" {
		km.Key = []byte(msg.Key)
	}
	return km, nil
}

func (p *Publisher) write(ctx context.Context, topic string, msgs ...kafka.Message) error {
	err := p.writer.WriteMessages(ctx, msgs...)
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	metrics.KafkaMessagesPublished.WithLabelValues(topic, status).Add(float64(len(msgs)))
	return err
}
