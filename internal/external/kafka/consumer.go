package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"fsmbus/internal/messaging"
	"fsmbus/pkg/correlation"
	"fsmbus/pkg/logger"
	"fsmbus/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

var ErrInvalidSubscription = errors.New("invalid subscription")

// MessageReader is the subset of *kafka.Reader a consumer group session uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterPublisher receives deliveries whose handler failed.
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, d messaging.Delivery, groupID string, handlerErr error) (messaging.DeadLetter, error)
}

// SubscriberConfig configures the Subscriber. Zero session values are filled from these defaults.
type SubscriberConfig struct {
	// Enabled=false makes Subscribe a logged no-op.
	Enabled            bool
	SessionTimeout     time.Duration
	HeartbeatInterval  time.Duration
	AutoCommitInterval time.Duration
	// FetchBackoff is the pause after a failed fetch before polling again.
	FetchBackoff time.Duration
}

// Status is a read-only snapshot of the subscriber.
type Status struct {
	Enabled        bool     `json:"enabled"`
	ConsumerGroups []string `json:"consumer_groups"`
	TotalConsumers int      `json:"total_consumers"`
}

type session struct {
	groupID string
	topics  []string
	reader  MessageReader
	cancel  context.CancelFunc
	// done is closed when the poll loop returns.
	done chan struct{}

	// closing is guarded by Subscriber.mu. A closing session stays in the map until its loop
	// has exited, so the group cannot be subscribed twice.
	closing bool
	// released is closed once the session has left the map.
	released chan struct{}
}

// Subscriber owns one polling session per consumer group.
type Subscriber struct {
	cfg    SubscriberConfig
	dlq    DeadLetterPublisher
	logger *slog.Logger

	newReader func(groupID string, topics []string, opts ReaderOptions) MessageReader

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSubscriber creates a subscriber. client may be nil when messaging is disabled.
func NewSubscriber(l *slog.Logger, client *Client, dlq DeadLetterPublisher, cfg SubscriberConfig) *Subscriber {
	if l == nil {
		l = slog.Default()
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = time.Second
	}
	s := &Subscriber{
		cfg:      cfg,
		dlq:      dlq,
		logger:   l.With("component", "kafka.subscriber"),
		sessions: make(map[string]*session),
	}
	if client != nil {
		s.newReader = func(groupID string, topics []string, opts ReaderOptions) MessageReader {
			return client.NewReader(groupID, topics, opts)
		}
	}
	return s
}

// Subscribe starts a polling session for groupID over topics. A second call for the same group
// is ignored with a warning and leaves the existing session untouched.
func (s *Subscriber) Subscribe(ctx context.Context, groupID string, topics []string, handler messaging.DeliveryHandler, opts messaging.SubscribeOptions) error {
	if groupID == "" || len(topics) == 0 || handler == nil {
		return fmt.Errorf("%w: group_id=%q topics=%v handler_set=%t", ErrInvalidSubscription, groupID, topics, handler != nil)
	}
	if !s.cfg.Enabled {
		s.logger.InfoContext(ctx, "Kafka consuming disabled, subscription skipped", "consumer_group", groupID, "topics", topics)
		return nil
	}
	if s.newReader == nil {
		return fmt.Errorf("%w: no kafka client configured", ErrInvalidSubscription)
	}

	s.mu.Lock()
	for {
		existing, exists := s.sessions[groupID]
		if !exists {
			break
		}
		if !existing.closing {
			s.mu.Unlock()
			s.logger.WarnContext(ctx, "Consumer group already subscribed, ignoring", "consumer_group", groupID, "topics", topics)
			return nil
		}
		s.mu.Unlock()

		s.logger.InfoContext(ctx, "Consumer group is disconnecting, waiting before subscribing", "consumer_group", groupID)
		select {
		case <-existing.released:
		case <-ctx.Done():
			return fmt.Errorf("wait for consumer %s to disconnect: %w", groupID, ctx.Err())
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = s.cfg.SessionTimeout
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = s.cfg.HeartbeatInterval
	}

	reader := s.newReader(groupID, topics, ReaderOptions{SubscribeOptions: opts, CommitInterval: s.cfg.AutoCommitInterval})

	// The poll loop outlives the caller's ctx; Disconnect is the only way to stop it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &session{
		groupID:  groupID,
		topics:   append([]string(nil), topics...),
		reader:   reader,
		cancel:   cancel,
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
	s.sessions[groupID] = sess
	metrics.KafkaActiveConsumerGroups.Inc()

	go s.run(loopCtx, sess, handler)

	s.logger.InfoContext(ctx, "Consumer started",
		"consumer_group", groupID, "topics", topics,
		"from_beginning", opts.FromBeginning, "auto_commit", opts.AutoCommit)
	return nil
}

func (s *Subscriber) run(ctx context.Context, sess *session, handler messaging.DeliveryHandler) {
	defer close(sess.done)
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Consumer loop panic recovered",
				"consumer_group", sess.groupID, "panic", rec, "stack", string(debug.Stack()))
		}
	}()

	for {
		msg, err := sess.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				s.logger.Info("Consumer stopped", "consumer_group", sess.groupID)
				return
			}
			s.logger.Error("Failed to fetch message", "consumer_group", sess.groupID, slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.FetchBackoff):
			}
			continue
		}

		s.handleMessage(ctx, msg, handler, sess.groupID)

		if err := sess.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Failed to commit message",
				"consumer_group", sess.groupID, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
				slog.Any("error", err))
		}
	}
}

// handleMessage decodes msg and runs handler. A failing handler routes the record to the DLQ;
// the record is never retried in place.
func (s *Subscriber) handleMessage(ctx context.Context, msg kafka.Message, handler messaging.DeliveryHandler, groupID string) {
	start := time.Now()
	d := decode(msg)

	ctx = correlation.WithID(ctx, d.CorrelationID())
	ctx = logger.ContextWith(ctx,
		slog.String("consumer_group", groupID),
		slog.String("topic", d.Topic),
		slog.Int("partition", d.Partition),
		slog.Int64("offset", d.Offset),
	)

	s.logger.DebugContext(ctx, "Message received", "key", d.Key)

	err := invoke(ctx, handler, d)

	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	metrics.KafkaProcessingDuration.WithLabelValues(d.Topic, groupID, status).Observe(time.Since(start).Seconds())
	metrics.KafkaMessagesProcessed.WithLabelValues(d.Topic, groupID, status).Inc()

	if err != nil {
		s.logger.ErrorContext(ctx, "Handler failed, routing message to DLQ", slog.Any("error", err))
		s.sendToDLQ(ctx, d, groupID, err)
	}
}

// sendToDLQ never fails the loop; DLQ errors are logged by the DLQ publisher and here.
func (s *Subscriber) sendToDLQ(ctx context.Context, d messaging.Delivery, groupID string, handlerErr error) {
	if s.dlq == nil {
		s.logger.ErrorContext(ctx, "No DLQ configured, failed message dropped", slog.Any("error", handlerErr))
		return
	}
	if _, err := s.dlq.PublishToDLQ(ctx, d, groupID, handlerErr); err != nil {
		s.logger.ErrorContext(ctx, "Dead letter lost", slog.Any("error", err))
	}
}

func decode(msg kafka.Message) messaging.Delivery {
	d := messaging.Delivery{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Timestamp: msg.Time,
		Value:     msg.Value,
		Headers:   messaging.FromKafkaHeaders(msg.Headers),
	}

	var data any
	if err := json.Unmarshal(msg.Value, &data); err != nil {
		d.Data = string(msg.Value)
	} else {
		d.Data = data
	}
	return d
}

func invoke(ctx context.Context, handler messaging.DeliveryHandler, d messaging.Delivery) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, d)
}

// Disconnect stops the group's loop, waits for the in-flight record (bounded by ctx) and closes the reader.
// The group stays registered until its loop has exited; a concurrent Subscribe for it waits.
func (s *Subscriber) Disconnect(ctx context.Context, groupID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[groupID]
	if !ok {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "Disconnect requested for unknown consumer group", "consumer_group", groupID)
		return nil
	}
	if sess.closing {
		s.mu.Unlock()
		select {
		case <-sess.released:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait for consumer %s: %w", groupID, ctx.Err())
		}
	}
	sess.closing = true
	s.mu.Unlock()

	metrics.KafkaActiveConsumerGroups.Dec()
	sess.cancel()

	var waitErr error
	select {
	case <-sess.done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("wait for consumer %s: %w", groupID, ctx.Err())
	}

	closeErr := sess.reader.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("close consumer %s: %w", groupID, closeErr)
	}

	if waitErr != nil {
		// A hung handler keeps the group reserved until it returns.
		go func() {
			<-sess.done
			s.release(sess)
		}()
		return errors.Join(waitErr, closeErr)
	}
	s.release(sess)

	if closeErr != nil {
		return closeErr
	}
	s.logger.InfoContext(ctx, "Consumer disconnected", "consumer_group", groupID)
	return nil
}

func (s *Subscriber) release(sess *session) {
	s.mu.Lock()
	if s.sessions[sess.groupID] == sess {
		delete(s.sessions, sess.groupID)
	}
	s.mu.Unlock()
	close(sess.released)
}

// DisconnectAll disconnects every group. A failure in one group is logged and does not stop the others.
func (s *Subscriber) DisconnectAll(ctx context.Context) error {
	groups := s.ConsumerGroups()

	var errs []error
	for _, groupID := range groups {
		if err := s.Disconnect(ctx, groupID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to disconnect consumer", "consumer_group", groupID, slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status returns a snapshot of enablement and active groups.
func (s *Subscriber) Status() Status {
	groups := s.ConsumerGroups()
	return Status{
		Enabled:        s.cfg.Enabled,
		ConsumerGroups: groups,
		TotalConsumers: len(groups),
	}
}

// Enabled reports whether consuming is administratively enabled.
func (s *Subscriber) Enabled() bool {
	return s.cfg.Enabled
}

// ConsumerGroups returns the active group IDs, sorted. Groups being disconnected are excluded.
func (s *Subscriber) ConsumerGroups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make([]string, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if sess.closing {
			continue
		}
		groups = append(groups, id)
	}
	sort.Strings(groups)
	return groups
}
