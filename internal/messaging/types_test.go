package messaging

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelivery_EventName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		delivery Delivery
		expected string
	}{
		{
			name: "header wins over payload",
			delivery: Delivery{
				Headers: map[string]string{HeaderEventName: "order.created"},
				Data:    map[string]any{"event_name": "order.updated"},
			},
			expected: "order.created",
		},
		{
			name:     "payload fallback",
			delivery: Delivery{Data: map[string]any{"event_name": "order.updated"}},
			expected: "order.updated",
		},
		{
			name:     "non-object payload",
			delivery: Delivery{Data: "plain text"},
			expected: "",
		},
		{
			name:     "payload field of wrong type",
			delivery: Delivery{Data: map[string]any{"event_name": 12}},
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.delivery.EventName())
		})
	}
}

func TestNewDeadLetter(t *testing.T) {
	t.Parallel()

	// given
	ts := time.UnixMilli(1_700_000_000_123)
	failedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := Delivery{
		Topic:     "fsm.projects",
		Partition: 2,
		Offset:    17,
		Key:       "evt-1",
		Timestamp: ts,
		Value:     []byte(`{"event_name":"order.created"}`),
		Data:      map[string]any{"event_name": "order.created"},
		Headers:   map[string]string{HeaderEventName: "order.created", HeaderCorrelationID: "corr-1"},
	}

	// when
	dl := NewDeadLetter(d, "g1", errors.New("boom"), failedAt)

	// then
	assert.Equal(t, "fsm.projects", dl.OriginalTopic)
	assert.Equal(t, 2, dl.OriginalPartition)
	assert.Equal(t, "17", dl.OriginalOffset)
	require.NotNil(t, dl.OriginalKey)
	assert.Equal(t, "evt-1", *dl.OriginalKey)
	assert.Equal(t, "1700000000123", dl.OriginalTimestamp)
	assert.Equal(t, "g1", dl.ConsumerGroup)
	assert.Equal(t, "boom", dl.ErrorMessage)
	assert.Equal(t, "2024-05-01T10:00:00Z", dl.ErrorTimestamp)
	require.NotNil(t, dl.CorrelationID)
	assert.Equal(t, "corr-1", *dl.CorrelationID)
	assert.Equal(t, `{"event_name":"order.created"}`, dl.MessageValue)
	assert.Equal(t, d.Headers, dl.MessageHeaders)
	assert.Equal(t, "fsm.projects:2:17", dl.Key())
}

func TestNewDeadLetter_WithoutKey(t *testing.T) {
	t.Parallel()

	dl := NewDeadLetter(Delivery{Topic: "t", Value: []byte("raw")}, "g", errors.New("x"), time.Now())

	assert.Nil(t, dl.OriginalKey)
	assert.Nil(t, dl.CorrelationID)
	assert.Empty(t, dl.OriginalTimestamp)
	assert.Equal(t, "t:0:0", dl.Key())
}

func TestNewDeadLetter_BinaryValue(t *testing.T) {
	t.Parallel()

	// given: a value that is not valid UTF-8
	value := []byte{0xff, 0xfe, 'o', 'k', 0x00, 0xc3}

	// when
	dl := NewDeadLetter(Delivery{Topic: "t", Value: value}, "g", errors.New("x"), time.Now())

	// then: the value survives JSON encoding byte for byte
	raw, err := json.Marshal(dl)
	require.NoError(t, err)
	var decoded DeadLetter
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, ValueEncodingBase64, decoded.MessageValueEncoding)
	original, err := base64.StdEncoding.DecodeString(decoded.MessageValue)
	require.NoError(t, err)
	assert.Equal(t, value, original)
}

func TestNewDeadLetter_TextValueIsKeptVerbatim(t *testing.T) {
	t.Parallel()

	dl := NewDeadLetter(Delivery{Topic: "t", Value: []byte(`{"name":"Łódź"}`)}, "g", errors.New("x"), time.Now())

	assert.Equal(t, `{"name":"Łódź"}`, dl.MessageValue)
	assert.Empty(t, dl.MessageValueEncoding)
	raw, err := json.Marshal(dl)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "message_value_encoding")
}

func TestKafkaHeaders_RoundTrip(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ToKafkaHeaders(nil))

	in := map[string]string{HeaderEventName: "order.created", HeaderEventVersion: "1"}
	assert.Equal(t, in, FromKafkaHeaders(ToKafkaHeaders(in)))

	dup := []kafka.Header{{Key: "a", Value: []byte("1")}, {Key: "a", Value: []byte("2")}}
	assert.Equal(t, map[string]string{"a": "2"}, FromKafkaHeaders(dup))
}

func TestToKafkaHeaders_SortedByKey(t *testing.T) {
	t.Parallel()

	in := map[string]string{
		HeaderEventVersion:  "1",
		HeaderCorrelationID: "corr-1",
		"original-topic":    "fsm.projects",
		HeaderEventName:     "order.created",
		"error":             "boom",
	}
	want := []kafka.Header{
		{Key: "correlation-id", Value: []byte("corr-1")},
		{Key: "error", Value: []byte("boom")},
		{Key: "event-name", Value: []byte("order.created")},
		{Key: "event-version", Value: []byte("1")},
		{Key: "original-topic", Value: []byte("fsm.projects")},
	}

	// map iteration order varies between runs, the wire order must not
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, ToKafkaHeaders(in))
	}
}
