package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"fsmbus/internal/messaging"
)

// Group is the binding of one consumer group to its topics and handlers.
type Group struct {
	ID            string
	Topics        []string
	FromBeginning bool
	AutoCommit    bool
	handlers      []boundHandler
}

// HandlerNames returns the names of the handlers bound to the group.
func (g Group) HandlerNames() []string {
	names := make([]string, 0, len(g.handlers))
	for _, h := range g.handlers {
		names = append(names, h.name())
	}
	return names
}

// Registry collects handler declarations and subscribes them at startup.
type Registry struct {
	serviceName string
	resolver    *messaging.TopicResolver
	subscriber  Subscriber
	logger      *slog.Logger

	mu       sync.Mutex
	handlers []Handler
	started  bool
}

// New creates a registry. serviceName prefixes derived consumer group IDs.
func New(l *slog.Logger, serviceName string, resolver *messaging.TopicResolver, subscriber Subscriber, handlers ...Handler) *Registry {
	if l == nil {
		l = slog.Default()
	}
	return &Registry{
		serviceName: serviceName,
		resolver:    resolver,
		subscriber:  subscriber,
		logger:      l.With("component", "registry"),
		handlers:    append([]Handler(nil), handlers...),
	}
}

// Register adds declarations. It fails once OnStartup has run.
func (r *Registry) Register(handlers ...Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("%w: registry already started", ErrInvalidHandler)
	}
	r.handlers = append(r.handlers, handlers...)
	return nil
}

// Groups partitions the declarations by consumer group, sorted by group ID.
// A group starts from the beginning if any handler asks for it and auto-commits only if all allow it.
func (r *Registry) Groups() ([]Group, error) {
	r.mu.Lock()
	handlers := append([]Handler(nil), r.handlers...)
	r.mu.Unlock()

	return r.groups(handlers)
}

func (r *Registry) groups(handlers []Handler) ([]Group, error) {
	byID := make(map[string]*Group)
	topicSets := make(map[string]map[string]struct{})

	for _, h := range handlers {
		bound, groupID, topics, err := bind(r.serviceName, r.resolver, h)
		if err != nil {
			return nil, err
		}

		g, ok := byID[groupID]
		if !ok {
			g = &Group{ID: groupID, AutoCommit: true}
			byID[groupID] = g
			topicSets[groupID] = make(map[string]struct{})
		}
		g.handlers = append(g.handlers, bound)
		g.FromBeginning = g.FromBeginning || h.FromBeginning
		g.AutoCommit = g.AutoCommit && !h.ManualCommit
		for _, topic := range topics {
			topicSets[groupID][topic] = struct{}{}
		}
	}

	groups := make([]Group, 0, len(byID))
	for id, g := range byID {
		for topic := range topicSets[id] {
			g.Topics = append(g.Topics, topic)
		}
		sort.Strings(g.Topics)
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// OnStartup subscribes one composite dispatcher per group. The registry counts as started only
// once every group is subscribed; on failure the groups already subscribed are disconnected and
// OnStartup may be retried. Later calls after a successful start log a warning and return nil.
func (r *Registry) OnStartup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		r.logger.WarnContext(ctx, "Registry already started, ignoring")
		return nil
	}

	groups, err := r.groups(r.handlers)
	if err != nil {
		return fmt.Errorf("build consumer groups: %w", err)
	}

	subscribed := make([]string, 0, len(groups))
	for _, g := range groups {
		opts := messaging.SubscribeOptions{
			FromBeginning: g.FromBeginning,
			AutoCommit:    g.AutoCommit,
		}
		if err := r.subscriber.Subscribe(ctx, g.ID, g.Topics, r.dispatcher(g), opts); err != nil {
			r.rollback(ctx, subscribed)
			return fmt.Errorf("subscribe group %s: %w", g.ID, err)
		}
		subscribed = append(subscribed, g.ID)
		r.logger.InfoContext(ctx, "Handlers bound",
			"consumer_group", g.ID, "topics", g.Topics, "handlers", g.HandlerNames(),
			"from_beginning", g.FromBeginning, "auto_commit", g.AutoCommit)
	}

	r.started = true
	r.logger.InfoContext(ctx, "Registry started", "groups", len(groups))
	return nil
}

func (r *Registry) rollback(ctx context.Context, groupIDs []string) {
	for _, id := range groupIDs {
		if err := r.subscriber.Disconnect(ctx, id); err != nil {
			r.logger.ErrorContext(ctx, "Failed to roll back consumer group", "consumer_group", id, slog.Any("error", err))
		}
	}
}
