package messaging

import (
	"context"
	"time"
)

// OutboundMessage is a single record handed to the publisher.
// Value is JSON-encoded unless it is already []byte or json.RawMessage.
type OutboundMessage struct {
	Key     string
	Value   any
	Headers map[string]string
}

// Metadata describes a completed write.
type Metadata struct {
	Topic     string    `json:"topic"`
	Key       string    `json:"key,omitempty"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends messages to the broker.
// Implementations return a nil Metadata and a nil error when publishing is disabled or the broker is not connected.
type Publisher interface {
	Send(ctx context.Context, topic string, msg OutboundMessage) (*Metadata, error)
	SendBatch(ctx context.Context, topic string, msgs []OutboundMessage) (*Metadata, error)
	SendEvent(ctx context.Context, eventName string, payload any, correlationID string) (*Metadata, error)
}

// Delivery is a decoded record as seen by a handler.
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Timestamp time.Time
	// Value is the raw record value.
	Value []byte
	// Data is the decoded JSON value, or the value as a string when it is not valid JSON.
	Data    any
	Headers map[string]string
}

// EventName returns the routing name of the record: the event-name header,
// falling back to the event_name field of a JSON object payload.
func (d Delivery) EventName() string {
	if name := d.Headers[HeaderEventName]; name != "" {
		return name
	}
	if obj, ok := d.Data.(map[string]any); ok {
		if name, ok := obj["event_name"].(string); ok {
			return name
		}
	}
	return ""
}

// CorrelationID returns the correlation-id header, falling back to the payload correlation_id field.
func (d Delivery) CorrelationID() string {
	if id := d.Headers[HeaderCorrelationID]; id != "" {
		return id
	}
	if obj, ok := d.Data.(map[string]any); ok {
		if id, ok := obj["correlation_id"].(string); ok {
			return id
		}
	}
	return ""
}

// DeliveryHandler processes a single delivery. A returned error routes the record to the DLQ.
type DeliveryHandler func(ctx context.Context, d Delivery) error

// SubscribeOptions tune a consumer group session. Zero durations fall back to the subscriber defaults.
type SubscribeOptions struct {
	FromBeginning     bool
	AutoCommit        bool
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
}
