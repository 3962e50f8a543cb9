package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fsmbus/internal/messaging"
	"fsmbus/pkg/metrics"
)

const (
	dlqPublishTimeout = 5 * time.Second

	// DLQEventName is the event-name header of dead letter records.
	DLQEventName = "dlq.message.failed"
)

// ErrDLQNotDelivered is returned when the publisher skipped the DLQ write (disabled or disconnected).
var ErrDLQNotDelivered = errors.New("dead letter not delivered: publisher unavailable")

// Sender is the publisher capability the DLQ path needs.
type Sender interface {
	Send(ctx context.Context, topic string, msg messaging.OutboundMessage) (*messaging.Metadata, error)
}

// DLQPublisher publishes failed deliveries to a fixed Dead Letter Queue topic.
type DLQPublisher struct {
	sender Sender
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

// NewDLQPublisher creates a new DLQ publisher on top of the shared publisher.
func NewDLQPublisher(l *slog.Logger, sender Sender, dlqTopic string) *DLQPublisher {
	if l == nil {
		l = slog.Default()
	}
	return &DLQPublisher{
		sender: sender,
		topic:  dlqTopic,
		logger: l.With("component", "kafka.dlq"),
		now:    time.Now,
	}
}

// Topic returns the DLQ topic name.
func (p *DLQPublisher) Topic() string {
	return p.topic
}

// PublishToDLQ writes a dead letter record for d, keyed by topic:partition:offset.
// A detached context is used so the record is persisted even while the consumer shuts down.
func (p *DLQPublisher) PublishToDLQ(ctx context.Context, d messaging.Delivery, groupID string, handlerErr error) (messaging.DeadLetter, error) {
	failedAt := p.now()
	record := messaging.NewDeadLetter(d, groupID, handlerErr, failedAt)

	dlqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dlqPublishTimeout)
	defer cancel()

	headers := map[string]string{
		messaging.HeaderEventName:    DLQEventName,
		messaging.HeaderEventVersion: messaging.DefaultEventVersion,
		"original-topic":             d.Topic,
		"error":                      record.ErrorMessage,
		"failed_at":                  failedAt.UTC().Format(time.RFC3339),
	}
	if record.CorrelationID != nil {
		headers[messaging.HeaderCorrelationID] = *record.CorrelationID
	}

	md, err := p.sender.Send(dlqCtx, p.topic, messaging.OutboundMessage{
		Key:     record.Key(),
		Value:   record,
		Headers: headers,
	})
	if err == nil && md == nil {
		err = ErrDLQNotDelivered
	}
	if err != nil {
		metrics.KafkaDLQMessages.WithLabelValues(d.Topic, groupID, metrics.StatusError).Inc()
		p.logger.ErrorContext(ctx, "Failed to publish to DLQ",
			"dlq_topic", p.topic, "key", record.Key(), slog.Any("error", err), "original_error", handlerErr.Error())
		return record, fmt.Errorf("publish dead letter %s: %w", record.Key(), err)
	}

	metrics.KafkaDLQMessages.WithLabelValues(d.Topic, groupID, metrics.StatusOK).Inc()
	p.logger.WarnContext(ctx, "Message sent to DLQ",
		"dlq_topic", p.topic, "key", record.Key(), "consumer_group", groupID, "error", record.ErrorMessage)
	return record, nil
}
