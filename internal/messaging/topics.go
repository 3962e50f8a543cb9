package messaging

import (
	"sort"
	"strings"
)

// DefaultTopicPrefix is prepended to domain names that have no explicit topic mapping.
const DefaultTopicPrefix = "fsm."

// DefaultTopicMap maps event-name domains to business topics.
func DefaultTopicMap(prefix string) map[string]string {
	return map[string]string{
		"project":     prefix + "projects",
		"order":       prefix + "projects",
		"schedule":    prefix + "scheduling",
		"scheduling":  prefix + "scheduling",
		"appointment": prefix + "scheduling",
		"assignment":  prefix + "assignments",
		"technician":  prefix + "assignments",
		"execution":   prefix + "execution",
		"task":        prefix + "execution",
		"contract":    prefix + "contracts",
		"signature":   prefix + "contracts",
	}
}

// TopicResolver derives destination topics from dot-segmented event names.
// It is shared by the publisher and the handler registry so both sides agree on routing.
type TopicResolver struct {
	prefix string
	topics map[string]string
}

// NewTopicResolver builds a resolver from the default map with overrides applied on top.
func NewTopicResolver(prefix string, overrides map[string]string) *TopicResolver {
	topics := DefaultTopicMap(prefix)
	for domain, topic := range overrides {
		if domain == "" || topic == "" {
			continue
		}
		topics[domain] = topic
	}
	return &TopicResolver{prefix: prefix, topics: topics}
}

// Domain returns the first dot segment of an event name.
func Domain(eventName string) string {
	domain, _, _ := strings.Cut(eventName, ".")
	return domain
}

// ForEvent returns the topic for an event name: the mapped topic when the domain is known,
// otherwise prefix + domain.
func (r *TopicResolver) ForEvent(eventName string) string {
	domain := Domain(eventName)
	if topic, ok := r.topics[domain]; ok {
		return topic
	}
	return r.prefix + domain
}

// Topics returns every distinct mapped topic, sorted.
func (r *TopicResolver) Topics() []string {
	seen := make(map[string]struct{}, len(r.topics))
	out := make([]string, 0, len(r.topics))
	for _, topic := range r.topics {
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}
