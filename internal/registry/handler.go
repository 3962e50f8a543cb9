// Package registry turns static handler declarations into consumer group subscriptions
// and routes every delivery to the handlers whose event pattern matches it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"fsmbus/internal/messaging"
)

var ErrInvalidHandler = errors.New("invalid handler declaration")

// Handler declares interest in events matching EventPattern.
//
// Handlers must be idempotent: when several handlers share a record and one fails, the record
// goes to the DLQ even though the others may already have applied their side effects.
type Handler struct {
	// Name identifies the handler in logs. Defaults to EventPattern.
	Name         string
	EventPattern string
	// Topics defaults to the topic derived from the pattern's domain.
	Topics []string
	// ConsumerGroupID defaults to <service>-<slug(EventPattern)>.
	ConsumerGroupID string
	FromBeginning   bool
	// ManualCommit opts out of auto-commit for the whole group.
	ManualCommit bool
	Callback     messaging.DeliveryHandler
}

//go:generate mockgen -source handler.go -destination mock_subscriber.go -package registry

// Subscriber starts and stops one polling session per consumer group.
type Subscriber interface {
	Subscribe(ctx context.Context, groupID string, topics []string, handler messaging.DeliveryHandler, opts messaging.SubscribeOptions) error
	Disconnect(ctx context.Context, groupID string) error
}

type boundHandler struct {
	Handler
	pattern *messaging.Pattern
}

func (h boundHandler) name() string {
	if h.Name != "" {
		return h.Name
	}
	return h.pattern.String()
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns an event pattern into a group-id friendly token: "order.*" becomes "order-any".
func Slug(pattern string) string {
	s := strings.ToLower(strings.ReplaceAll(pattern, "*", "any"))
	return strings.Trim(nonSlug.ReplaceAllString(s, "-"), "-")
}

func bind(serviceName string, resolver *messaging.TopicResolver, h Handler) (boundHandler, string, []string, error) {
	if h.Callback == nil {
		return boundHandler{}, "", nil, fmt.Errorf("%w: %q has no callback", ErrInvalidHandler, h.EventPattern)
	}
	pattern, err := messaging.CompilePattern(h.EventPattern)
	if err != nil {
		return boundHandler{}, "", nil, fmt.Errorf("%w: %w", ErrInvalidHandler, err)
	}

	groupID := h.ConsumerGroupID
	if groupID == "" {
		groupID = serviceName + "-" + Slug(h.EventPattern)
	}

	topics := h.Topics
	if len(topics) == 0 {
		domain := messaging.Domain(h.EventPattern)
		if domain == "" || strings.Contains(domain, "*") {
			return boundHandler{}, "", nil, fmt.Errorf("%w: cannot derive topic from pattern %q, set Topics", ErrInvalidHandler, h.EventPattern)
		}
		topics = []string{resolver.ForEvent(h.EventPattern)}
	}

	return boundHandler{Handler: h, pattern: pattern}, groupID, topics, nil
}
