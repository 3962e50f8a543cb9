package app

import (
	"context"
	"log/slog"

	"fsmbus/config"
	"fsmbus/internal/messaging"
	"fsmbus/internal/registry"
)

// DefaultHandlers returns the handlers every service runs: a catch-all audit log over all
// business topics in its own consumer group.
func DefaultHandlers(cfg config.Config, l *slog.Logger) []registry.Handler {
	if l == nil {
		l = slog.Default()
	}
	resolver := messaging.NewTopicResolver(cfg.Kafka.TopicPrefix, cfg.Kafka.TopicOverrides)

	return []registry.Handler{
		{
			Name:            "audit",
			EventPattern:    "**",
			Topics:          resolver.Topics(),
			ConsumerGroupID: cfg.ServiceName + "-audit",
			Callback:        auditLog(l),
		},
	}
}

func auditLog(l *slog.Logger) messaging.DeliveryHandler {
	return func(ctx context.Context, d messaging.Delivery) error {
		l.InfoContext(ctx, "Event received",
			"event_name", d.EventName(),
			"topic", d.Topic,
			"partition", d.Partition,
			"offset", d.Offset,
			"key", d.Key,
		)
		return nil
	}
}
