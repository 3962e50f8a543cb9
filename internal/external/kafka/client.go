package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"fsmbus/internal/messaging"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

var ErrNoBrokers = errors.New("kafka client requires at least one broker")

// ClientConfig describes how to reach the shared broker.
type ClientConfig struct {
	Brokers  []string
	ClientID string

	TLSEnabled            bool
	TLSInsecureSkipVerify bool
	SASLMechanism         string
	SASLUsername          string
	SASLPassword          string

	ConnectTimeout time.Duration
}

// WriterConfig bounds the writer's internal retry budget.
type WriterConfig struct {
	MaxAttempts     int
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	AutoCreateTopic bool
}

// ReaderOptions configure a consumer group reader.
type ReaderOptions struct {
	messaging.SubscribeOptions
	// CommitInterval is used when AutoCommit is set; otherwise commits are synchronous.
	CommitInterval time.Duration
}

// Client owns the connection settings shared by the publisher and the subscriber.
type Client struct {
	cfg       ClientConfig
	dialer    *kafka.Dialer
	transport *kafka.Transport
}

// NewClient validates the config and builds the TLS and SASL settings.
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	mechanism, err := saslMechanism(cfg.SASLMechanism, cfg.SASLUsername, cfg.SASLPassword)
	if err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if cfg.TLSEnabled {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.TLSInsecureSkipVerify, //nolint:gosec // opt-in for local clusters
		}
	}

	return &Client{
		cfg: cfg,
		dialer: &kafka.Dialer{
			ClientID:      cfg.ClientID,
			Timeout:       cfg.ConnectTimeout,
			DualStack:     true,
			TLS:           tlsConfig,
			SASLMechanism: mechanism,
		},
		transport: &kafka.Transport{
			ClientID:    cfg.ClientID,
			DialTimeout: cfg.ConnectTimeout,
			TLS:         tlsConfig,
			SASL:        mechanism,
		},
	}, nil
}

func saslMechanism(name, username, password string) (sasl.Mechanism, error) {
	switch strings.ToLower(name) {
	case "":
		return nil, nil
	case "plain":
		return plain.Mechanism{Username: username, Password: password}, nil
	case "scram-sha-256":
		m, err := scram.Mechanism(scram.SHA256, username, password)
		if err != nil {
			return nil, fmt.Errorf("scram-sha-256 mechanism: %w", err)
		}
		return m, nil
	case "scram-sha-512":
		m, err := scram.Mechanism(scram.SHA512, username, password)
		if err != nil {
			return nil, fmt.Errorf("scram-sha-512 mechanism: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported sasl mechanism %q", name)
	}
}

// Brokers returns the configured broker addresses.
func (c *Client) Brokers() []string {
	return append([]string(nil), c.cfg.Brokers...)
}

// Ping succeeds as soon as any broker accepts a connection.
func (c *Client) Ping(ctx context.Context) error {
	var errs []error
	for _, broker := range c.cfg.Brokers {
		conn, err := c.dialer.DialContext(ctx, "tcp", broker)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", broker, err))
	}
	return fmt.Errorf("all brokers unreachable: %w", errors.Join(errs...))
}

// NewWriter returns a topic-less writer; every message names its topic.
// Retries use exponential backoff between BackoffMin and BackoffMax.
func (c *Client) NewWriter(cfg WriterConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxAttempts,
		WriteBackoffMin:        cfg.BackoffMin,
		WriteBackoffMax:        cfg.BackoffMax,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: cfg.AutoCreateTopic,
		Transport:              c.transport,
	}
}

// NewReader returns a consumer group reader over all given topics.
func (c *Client) NewReader(groupID string, topics []string, opts ReaderOptions) *kafka.Reader {
	startOffset := kafka.LastOffset
	if opts.FromBeginning {
		startOffset = kafka.FirstOffset
	}

	var commitInterval time.Duration
	if opts.AutoCommit {
		commitInterval = opts.CommitInterval
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:           c.cfg.Brokers,
		GroupID:           groupID,
		GroupTopics:       topics,
		Dialer:            c.dialer,
		MinBytes:          1,
		MaxBytes:          10e6, // 10MB
		MaxWait:           500 * time.Millisecond,
		StartOffset:       startOffset,
		CommitInterval:    commitInterval,
		SessionTimeout:    opts.SessionTimeout,
		HeartbeatInterval: opts.HeartbeatInterval,
	})
}
