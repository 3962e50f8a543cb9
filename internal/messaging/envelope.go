package messaging

import (
	"crypto/rand"
	"sync"
	"time"

	"fsmbus/pkg/pointers"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewEventID returns a time-sortable ULID. Used as event_id and as the partition key of published events.
func NewEventID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Envelope is the standard wrapper around every business event put on the bus.
type Envelope struct {
	EventID        string  `json:"event_id"`
	EventName      string  `json:"event_name"`
	EventTimestamp int64   `json:"event_timestamp"`
	CorrelationID  *string `json:"correlation_id"`
	Payload        any     `json:"payload"`
}

// NewEnvelope creates an envelope with a fresh event ID and the current time in epoch millis.
// An empty correlationID is encoded as null.
func NewEnvelope(eventName string, payload any, correlationID string) Envelope {
	return Envelope{
		EventID:        NewEventID(),
		EventName:      eventName,
		EventTimestamp: time.Now().UnixMilli(),
		CorrelationID:  pointers.NonZero(correlationID),
		Payload:        payload,
	}
}

// Headers returns the routing headers that accompany the envelope on the wire.
func (e Envelope) Headers() map[string]string {
	h := map[string]string{
		HeaderEventName:    e.EventName,
		HeaderEventVersion: DefaultEventVersion,
	}
	if e.CorrelationID != nil {
		h[HeaderCorrelationID] = *e.CorrelationID
	}
	return h
}
