package kafka

import (
	"context"
	"net"
	"testing"
	"time"

	"fsmbus/internal/messaging"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		cfg         ClientConfig
		expectedErr string
	}{
		{name: "requires brokers", cfg: ClientConfig{}, expectedErr: ErrNoBrokers.Error()},
		{name: "plain sasl", cfg: ClientConfig{Brokers: []string{"b:9092"}, SASLMechanism: "PLAIN", SASLUsername: "u", SASLPassword: "p"}},
		{name: "scram sasl", cfg: ClientConfig{Brokers: []string{"b:9092"}, SASLMechanism: "scram-sha-512", SASLUsername: "u", SASLPassword: "p"}},
		{name: "tls", cfg: ClientConfig{Brokers: []string{"b:9092"}, TLSEnabled: true}},
		{name: "unknown sasl", cfg: ClientConfig{Brokers: []string{"b:9092"}, SASLMechanism: "gssapi"}, expectedErr: `unsupported sasl mechanism "gssapi"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(tc.cfg)

			if tc.expectedErr != "" {
				assert.EqualError(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cfg.Brokers, client.Brokers())
			assert.Equal(t, tc.cfg.TLSEnabled, client.dialer.TLS != nil)
			assert.Equal(t, tc.cfg.SASLMechanism != "", client.dialer.SASLMechanism != nil)
		})
	}
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	t.Run("succeeds when a broker accepts connections", func(t *testing.T) {
		// given
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				_ = conn.Close()
			}
		}()

		client, err := NewClient(ClientConfig{Brokers: []string{"127.0.0.1:1", ln.Addr().String()}, ConnectTimeout: time.Second})
		require.NoError(t, err)

		// when / then
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("fails when no broker is reachable", func(t *testing.T) {
		client, err := NewClient(ClientConfig{Brokers: []string{"127.0.0.1:1"}, ConnectTimeout: time.Second})
		require.NoError(t, err)

		assert.ErrorContains(t, client.Ping(context.Background()), "all brokers unreachable")
	})
}

func TestClient_NewWriterAndReader(t *testing.T) {
	t.Parallel()

	client, err := NewClient(ClientConfig{Brokers: []string{"b1:9092", "b2:9092"}})
	require.NoError(t, err)

	w := client.NewWriter(WriterConfig{MaxAttempts: 5, BackoffMin: time.Millisecond, BackoffMax: time.Second})
	assert.Empty(t, w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Equal(t, 5, w.MaxAttempts)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)

	r := client.NewReader("g1", []string{"fsm.projects", "fsm.contracts"}, ReaderOptions{
		SubscribeOptions: messaging.SubscribeOptions{FromBeginning: true, AutoCommit: true},
		CommitInterval:   5 * time.Second,
	})
	defer r.Close()
	cfg := r.Config()
	assert.Equal(t, "g1", cfg.GroupID)
	assert.Equal(t, []string{"fsm.projects", "fsm.contracts"}, cfg.GroupTopics)
	assert.Equal(t, kafka.FirstOffset, cfg.StartOffset)
	assert.Equal(t, 5*time.Second, cfg.CommitInterval)

	manual := client.NewReader("g2", []string{"fsm.projects"}, ReaderOptions{CommitInterval: 5 * time.Second})
	defer manual.Close()
	assert.Equal(t, kafka.LastOffset, manual.Config().StartOffset)
	assert.Zero(t, manual.Config().CommitInterval)
}
