package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"campushub/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
	// Max live views one connection may hold open
	maxViewsPerClient = 16
)

var (
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrHubClosed       = errors.New("hub is shut down")
)

// Auth event kinds carried on the auth_events table.
const (
	AuthSignedIn        = "signed_in"
	AuthSignedOut       = "signed_out"
	AuthPasswordUpdated = "password_updated"
)

// AuthEvent is the row of an auth_events change.
type AuthEvent struct {
	UserID uint   `json:"user_id"`
	Kind   string `json:"kind"`
}

// SubscribeRequest identifies the view a client asked for.
type SubscribeRequest struct {
	View    string
	ID      uint
	Hashtag string
}

// ViewFactory builds and authorizes a view for userID. It must not load data; the
// hub subscribes to the view's filters before calling Reload.
type ViewFactory func(ctx context.Context, userID uint, req SubscribeRequest) (View, error)

// AuraToggler performs the write behind an optimistic aura toggle.
type AuraToggler func(ctx context.Context, userID, postID uint, liked bool) error

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAuraToggler enables optimistic aura frames.
func WithAuraToggler(fn AuraToggler) HubOption {
	return func(h *Hub) { h.toggleAura = fn }
}

// Hub maps userID to its live-view websocket clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool

	feed       Feed
	views      ViewFactory
	toggleAura AuraToggler
}

// NewHub creates a hub that sources events from feed and builds views with views.
func NewHub(feed Feed, views ViewFactory, opts ...HubOption) *Hub {
	h := &Hub{
		conns: make(map[uint]map[*Client]struct{}),
		feed:  feed,
		views: views,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register a connection for userID and start its event loop. conn may be nil in tests,
// in which case frames are only queued on Client.Send.
func (h *Hub) Register(ctx context.Context, userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerConnLimit
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}

	client := newClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	middleware.ActiveWebSockets.Inc()

	if h.feed != nil {
		sub, err := h.feed.Subscribe(ctx, FilterID(TableAuthEvents, "user_id", userID), client.onAuthEvent)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "failed to subscribe to auth events",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()),
			)
		} else {
			client.authSub = sub
		}
	}

	go client.run()
	return client, nil
}

// UnregisterClient removes client and stops its loop. Safe to call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if removed {
		middleware.ActiveWebSockets.Dec()
	}
	client.stop()
}

// ConnectionCount returns the number of open connections for userID.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Broadcast sends frame to all connections for userID.
func (h *Hub) Broadcast(userID uint, frame Frame) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.sendFrame(frame)
	}
}

// Shutdown stops every client. Each write pump then sends a going-away close frame.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	h.closed = true
	var clients []*Client
	for _, userConns := range h.conns {
		for c := range userConns {
			clients = append(clients, c)
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	for _, c := range clients {
		middleware.ActiveWebSockets.Dec()
		c.stop()
	}
	if len(clients) > 0 {
		middleware.Logger.Info("closed live-view websockets", slog.Int("count", len(clients)))
	}
	return nil
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}
