package realtime

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"campushub/internal/middleware"
	"campushub/internal/observability"
)

// Handler receives events for one subscription.
type Handler func(ChangeEvent)

// Subscription is an active Subscribe call.
type Subscription interface {
	Unsubscribe() error
}

// Feed publishes and fans out change events.
type Feed interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Close() error
}

// Emit publishes a change after a successful write. Failures are logged and counted;
// the write itself has already succeeded and live views re-fetch on reconnect.
func Emit(ctx context.Context, feed Feed, table string, typ EventType, record any, scopes ...Scope) {
	if feed == nil {
		return
	}
	ev, err := NewEvent(table, typ, record, scopes...)
	if err == nil {
		err = feed.Publish(ctx, ev)
	}
	if err != nil {
		observability.RealtimePublishErrors.WithLabelValues(table).Inc()
		middleware.Logger.WarnContext(ctx, "failed to publish change event",
			slog.String("table", table),
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}

func safeDeliver(h Handler, ev ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic in change event handler",
				slog.Any("panic", r),
				slog.String("table", ev.Table),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	h(ev)
}

// MemoryFeed delivers events in-process and synchronously. Used when no broker is
// configured and in tests.
type MemoryFeed struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	feed    *MemoryFeed
	channel string
	h       Handler
	once    sync.Once
}

// NewMemoryFeed returns an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[*memorySub]struct{})}
}

// Publish implements Feed.
func (m *MemoryFeed) Publish(_ context.Context, ev ChangeEvent) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil
	}
	var targets []*memorySub
	for _, f := range ev.Filters() {
		for s := range m.subs[f.Channel()] {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range targets {
		safeDeliver(s.h, ev)
	}
	return nil
}

// Subscribe implements Feed.
func (m *MemoryFeed) Subscribe(_ context.Context, f Filter, h Handler) (Subscription, error) {
	s := &memorySub{feed: m, channel: f.Channel(), h: h}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[s.channel]
	if !ok {
		set = make(map[*memorySub]struct{})
		m.subs[s.channel] = set
	}
	set[s] = struct{}{}
	return s, nil
}

// Close drops all subscriptions.
func (m *MemoryFeed) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[string]map[*memorySub]struct{})
	return nil
}

// SubscriberCount returns the number of subscriptions on f's channel.
func (m *MemoryFeed) SubscriberCount(f Filter) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[f.Channel()])
}

func (s *memorySub) Unsubscribe() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		if set, ok := s.feed.subs[s.channel]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.feed.subs, s.channel)
			}
		}
	})
	return nil
}
