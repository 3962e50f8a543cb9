// Package app is the composition root: it builds the messaging layer from config and runs it
// next to the probe/metrics HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fsmbus/config"
	"fsmbus/internal/external/kafka"
	"fsmbus/internal/messaging"
	"fsmbus/internal/registry"
	"fsmbus/pkg/health"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// App holds the process-wide messaging singletons.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	resolver   *messaging.TopicResolver
	publisher  *kafka.Publisher
	subscriber *kafka.Subscriber
	registry   *registry.Registry
	health     *health.MessagingHealth
	server     *http.Server
}

// New wires the publisher, DLQ, subscriber, handler registry and HTTP surface.
// Nothing touches the network until Run.
func New(cfg config.Config, l *slog.Logger, handlers ...registry.Handler) (*App, error) {
	if l == nil {
		l = slog.Default()
	}

	var client *kafka.Client
	if cfg.Kafka.Enabled {
		var err error
		client, err = kafka.NewClient(kafka.ClientConfig{
			Brokers:               cfg.Kafka.Brokers,
			ClientID:              cfg.Kafka.ClientID,
			TLSEnabled:            cfg.Kafka.TLSEnabled,
			TLSInsecureSkipVerify: cfg.Kafka.TLSInsecureSkipVerify,
			SASLMechanism:         cfg.Kafka.SASLMechanism,
			SASLUsername:          cfg.Kafka.SASLUsername,
			SASLPassword:          cfg.Kafka.SASLPassword,
			ConnectTimeout:        cfg.Kafka.ConnectTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("app - New - kafka.NewClient: %w", err)
		}
	}

	resolver := messaging.NewTopicResolver(cfg.Kafka.TopicPrefix, cfg.Kafka.TopicOverrides)

	publisher := kafka.NewPublisher(l, client, resolver, kafka.PublisherConfig{
		Enabled: cfg.Kafka.Enabled,
		Writer: kafka.WriterConfig{
			MaxAttempts: cfg.Kafka.Retries,
			BackoffMin:  cfg.Kafka.RetryBackoffMin,
			BackoffMax:  cfg.Kafka.RetryBackoffMax,
		},
	})
	dlq := kafka.NewDLQPublisher(l, publisher, cfg.Kafka.DLQTopic)

	subscriber := kafka.NewSubscriber(l, client, dlq, kafka.SubscriberConfig{
		Enabled:            cfg.Kafka.Enabled,
		SessionTimeout:     cfg.Kafka.SessionTimeout,
		HeartbeatInterval:  cfg.Kafka.HeartbeatInterval,
		AutoCommitInterval: cfg.Kafka.AutoCommitInterval,
	})

	a := &App{
		cfg:        cfg,
		logger:     l,
		resolver:   resolver,
		publisher:  publisher,
		subscriber: subscriber,
		registry:   registry.New(l, cfg.ServiceName, resolver, subscriber, handlers...),
		health:     health.NewMessagingIndicator(publisher, subscriber),
	}
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.newEngine(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

// Publisher is the process-wide publisher for application code.
func (a *App) Publisher() messaging.Publisher {
	return a.publisher
}

// Resolver returns the topic resolver shared by the publisher and the registry.
func (a *App) Resolver() *messaging.TopicResolver {
	return a.resolver
}

// Handler returns the HTTP handler serving probes and metrics.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run connects the publisher, subscribes every registered handler and serves HTTP
// until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.publisher.Connect(ctx); err != nil {
		return fmt.Errorf("app - Run - publisher.Connect: %w", err)
	}
	if err := a.registry.OnStartup(ctx); err != nil {
		_ = a.shutdown()
		return fmt.Errorf("app - Run - registry.OnStartup: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfoContext(gctx, "Starting HTTP server", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app - Run - ListenAndServe: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down gracefully")
		return a.shutdown()
	})

	return g.Wait()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.subscriber.DisconnectAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher close: %w", err))
	}
	return errors.Join(errs...)
}
