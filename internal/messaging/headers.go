package messaging

import (
	"maps"
	"slices"

	"fsmbus/pkg/correlation"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventName     = "event-name"
	HeaderEventVersion  = "event-version"
	HeaderCorrelationID = correlation.KafkaHeaderName

	DefaultEventVersion = "1"
)

// ToKafkaHeaders converts a header map to kafka-go headers, sorted by key.
func ToKafkaHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(h))
	for _, k := range slices.Sorted(maps.Keys(h)) {
		out = append(out, kafka.Header{Key: k, Value: []byte(h[k])})
	}
	return out
}

// FromKafkaHeaders converts kafka-go headers to a map. On duplicate keys the last value wins.
func FromKafkaHeaders(h []kafka.Header) map[string]string {
	out := make(map[string]string, len(h))
	for _, header := range h {
		out[header.Key] = string(header.Value)
	}
	return out
}
