package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fsmbus/internal/messaging"

	"golang.org/x/sync/errgroup"
)

// dispatcher builds the composite handler of a group. Matching handlers run concurrently
// and are all awaited; any failure fails the whole record.
func (r *Registry) dispatcher(g Group) messaging.DeliveryHandler {
	return func(ctx context.Context, d messaging.Delivery) error {
		eventName := d.EventName()
		if eventName == "" {
			r.logger.WarnContext(ctx, "Message without event name, skipping", "consumer_group", g.ID, "topic", d.Topic)
			return nil
		}

		matched := make([]boundHandler, 0, len(g.handlers))
		for _, h := range g.handlers {
			if h.pattern.Match(eventName) {
				matched = append(matched, h)
			}
		}
		if len(matched) == 0 {
			r.logger.DebugContext(ctx, "No handler matches event, skipping", "consumer_group", g.ID, "event_name", eventName)
			return nil
		}

		errs := make([]error, len(matched))
		var eg errgroup.Group
		for i, h := range matched {
			eg.Go(func() error {
				errs[i] = call(ctx, h, d)
				return nil
			})
		}
		_ = eg.Wait()

		for i, err := range errs {
			if err != nil {
				r.logger.ErrorContext(ctx, "Handler failed",
					"consumer_group", g.ID, "handler", matched[i].name(), "event_name", eventName, slog.Any("error", err))
			}
		}
		return errors.Join(errs...)
	}
}

func call(ctx context.Context, h boundHandler, d messaging.Delivery) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler %s panic: %v", h.name(), rec)
		}
	}()
	return h.Callback(ctx, d)
}
