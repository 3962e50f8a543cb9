package messaging

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"fsmbus/pkg/pointers"
)

// DeadLetter is the record written to the DLQ topic when a handler fails.
type DeadLetter struct {
	OriginalTopic        string            `json:"original_topic"`
	OriginalPartition    int               `json:"original_partition"`
	OriginalOffset       string            `json:"original_offset"`
	OriginalKey          *string           `json:"original_key"`
	OriginalTimestamp    string            `json:"original_timestamp"`
	ConsumerGroup        string            `json:"consumer_group"`
	ErrorMessage         string            `json:"error_message"`
	ErrorStack           string            `json:"error_stack"`
	ErrorTimestamp       string            `json:"error_timestamp"`
	CorrelationID        *string           `json:"correlation_id"`
	MessageValue         string            `json:"message_value"`
	// MessageValueEncoding is "base64" when the original value was not valid UTF-8.
	MessageValueEncoding string            `json:"message_value_encoding,omitempty"`
	MessageHeaders       map[string]string `json:"message_headers"`
}

// ValueEncodingBase64 marks a dead letter whose message_value is base64 (std encoding).
const ValueEncodingBase64 = "base64"

// NewDeadLetter captures a failed delivery together with the handler error.
func NewDeadLetter(d Delivery, groupID string, handlerErr error, failedAt time.Time) DeadLetter {
	dl := DeadLetter{
		OriginalTopic:     d.Topic,
		OriginalPartition: d.Partition,
		OriginalOffset:    strconv.FormatInt(d.Offset, 10),
		ConsumerGroup:     groupID,
		ErrorMessage:      handlerErr.Error(),
		ErrorStack:        fmt.Sprintf("%+v", handlerErr),
		ErrorTimestamp:    failedAt.UTC().Format(time.RFC3339Nano),
		MessageHeaders:    d.Headers,
		OriginalKey:       pointers.NonZero(d.Key),
		CorrelationID:     pointers.NonZero(d.CorrelationID()),
	}
	if utf8.Valid(d.Value) {
		dl.MessageValue = string(d.Value)
	} else {
		dl.MessageValue = base64.StdEncoding.EncodeToString(d.Value)
		dl.MessageValueEncoding = ValueEncodingBase64
	}
	if !d.Timestamp.IsZero() {
		dl.OriginalTimestamp = strconv.FormatInt(d.Timestamp.UnixMilli(), 10)
	}
	return dl
}

// Key returns the DLQ partition key topic:partition:offset.
func (dl DeadLetter) Key() string {
	return fmt.Sprintf("%s:%d:%s", dl.OriginalTopic, dl.OriginalPartition, dl.OriginalOffset)
}
