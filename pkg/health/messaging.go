package health

import (
	"context"
	"fmt"
)

const (
	PublisherIndicator = "kafka_publisher"
	ConsumerIndicator  = "kafka_consumer"
	MessagingIndicator = "kafka"
)

// PublisherProbe exposes publisher connectivity.
type PublisherProbe interface {
	IsConnected() bool
	Brokers() []string
}

// ConsumerProbe exposes subscriber enablement and active groups.
type ConsumerProbe interface {
	Enabled() bool
	ConsumerGroups() []string
}

// IndicatorError is returned by indicator probes when the component is down.
// Callers aggregating several indicators can detect it with errors.As.
type IndicatorError struct {
	Indicator string
	Result    Result
}

func (e *IndicatorError) Error() string {
	if e.Result.Message == "" {
		return fmt.Sprintf("health indicator %s is %s", e.Indicator, e.Result.Status)
	}
	return fmt.Sprintf("health indicator %s is %s: %s", e.Indicator, e.Result.Status, e.Result.Message)
}

// MessagingHealth reports on the broker publisher and subscriber. It only reads state.
type MessagingHealth struct {
	publisher PublisherProbe
	consumer  ConsumerProbe
}

// NewMessagingIndicator creates the messaging health indicator.
func NewMessagingIndicator(publisher PublisherProbe, consumer ConsumerProbe) *MessagingHealth {
	return &MessagingHealth{publisher: publisher, consumer: consumer}
}

// IsPublisherHealthy is up iff the publisher is connected.
func (h *MessagingHealth) IsPublisherHealthy(_ context.Context) (Result, error) {
	connected := h.publisher.IsConnected()
	res := Result{
		Status: StatusUp,
		Details: map[string]any{
			"connected": connected,
			"brokers":   h.publisher.Brokers(),
		},
	}
	if !connected {
		res.Status = StatusDown
		res.Message = "publisher is not connected"
		return res, &IndicatorError{Indicator: PublisherIndicator, Result: res}
	}
	return res, nil
}

// IsConsumerHealthy is up iff messaging is enabled. Having no active groups is not a failure.
func (h *MessagingHealth) IsConsumerHealthy(_ context.Context) (Result, error) {
	enabled := h.consumer.Enabled()
	groups := h.consumer.ConsumerGroups()
	res := Result{
		Status: StatusUp,
		Details: map[string]any{
			"enabled":         enabled,
			"consumer_groups": groups,
			"total_consumers": len(groups),
		},
	}
	if !enabled {
		res.Status = StatusDown
		res.Message = "messaging is disabled"
		return res, &IndicatorError{Indicator: ConsumerIndicator, Result: res}
	}
	return res, nil
}

// IsHealthy is up iff both the publisher and the consumer are up.
func (h *MessagingHealth) IsHealthy(ctx context.Context) (Result, error) {
	pub, _ := h.IsPublisherHealthy(ctx)
	con, _ := h.IsConsumerHealthy(ctx)

	res := Result{
		Status: StatusUp,
		Details: map[string]any{
			PublisherIndicator: pub,
			ConsumerIndicator:  con,
		},
	}
	if pub.Up() && con.Up() {
		return res, nil
	}

	res.Status = StatusDown
	switch {
	case !pub.Up() && !con.Up():
		res.Message = pub.Message + "; " + con.Message
	case !pub.Up():
		res.Message = pub.Message
	default:
		res.Message = con.Message
	}
	return res, &IndicatorError{Indicator: MessagingIndicator, Result: res}
}

// Checkers adapts the probes for a readiness Registry.
func (h *MessagingHealth) Checkers() []Checker {
	return []Checker{
		NewCheckerFunc(PublisherIndicator, func(ctx context.Context) Result {
			res, _ := h.IsPublisherHealthy(ctx)
			return res
		}),
		NewCheckerFunc(ConsumerIndicator, func(ctx context.Context) Result {
			res, _ := h.IsConsumerHealthy(ctx)
			return res
		}),
	}
}
