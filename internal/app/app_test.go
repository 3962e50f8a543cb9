package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fsmbus/config"
	"fsmbus/internal/messaging"
	"fsmbus/pkg/correlation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func disabledConfig() config.Config {
	return config.Config{
		ServiceName: "svc",
		HTTPPort:    0,
		Kafka: config.Kafka{
			Enabled:     false,
			TopicPrefix: messaging.DefaultTopicPrefix,
			DLQTopic:    "fsm.dlq",
		},
	}
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func TestApp_DisabledMessaging(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := disabledConfig()
	a, err := New(cfg, nil, DefaultHandlers(cfg, nil)...)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.publisher.Connect(ctx))
	require.NoError(t, a.registry.OnStartup(ctx))

	// when: sending with messaging disabled
	md, err := a.Publisher().SendEvent(ctx, "order.created", map[string]any{"id": 1}, "")

	// then: nothing is published and nothing fails
	require.NoError(t, err)
	assert.Nil(t, md)
	assert.Empty(t, a.subscriber.ConsumerGroups())

	t.Run("liveness is always up", func(t *testing.T) {
		w := serve(t, a.Handler(), "/health/live")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(correlation.HeaderName))
	})

	t.Run("messaging indicator reports the disconnected publisher", func(t *testing.T) {
		w := serve(t, a.Handler(), "/health/messaging")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "down", body["status"])
	})

	t.Run("readiness aggregates the messaging checks", func(t *testing.T) {
		w := serve(t, a.Handler(), "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		w := serve(t, a.Handler(), "/metrics")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "fsm_kafka_messages_published_total")
	})

	require.NoError(t, a.shutdown())
}

func TestNew_RejectsEnabledKafkaWithoutBrokers(t *testing.T) {
	cfg := disabledConfig()
	cfg.Kafka.Enabled = true

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestDefaultHandlers(t *testing.T) {
	cfg := disabledConfig()

	handlers := DefaultHandlers(cfg, nil)

	require.Len(t, handlers, 1)
	h := handlers[0]
	assert.Equal(t, "**", h.EventPattern)
	assert.Equal(t, "svc-audit", h.ConsumerGroupID)
	assert.Equal(t, []string{"fsm.assignments", "fsm.contracts", "fsm.execution", "fsm.projects", "fsm.scheduling"}, h.Topics)
	assert.NoError(t, h.Callback(context.Background(), messaging.Delivery{Topic: "fsm.projects"}))
}
