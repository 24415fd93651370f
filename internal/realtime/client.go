package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"campushub/internal/middleware"
	"campushub/internal/models"
	"campushub/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	sendBuffer  = 256
	inboxBuffer = 256
)

// Outbound frame types.
const (
	FrameSnapshot  = "view_snapshot"
	FramePatch     = "view_patch"
	FrameClosed    = "view_closed"
	FrameError     = "view_error"
	FrameAuth      = "auth_event"
	FramePong      = "pong"
	FrameSignedOut = "signed_out"
)

// Frame is one server-to-client websocket message.
type Frame struct {
	Type       string       `json:"type"`
	View       string       `json:"view,omitempty"`
	ID         uint         `json:"id,omitempty"`
	Data       any          `json:"data,omitempty"`
	Event      *ChangeEvent `json:"event,omitempty"`
	Summary    any          `json:"summary,omitempty"`
	Optimistic bool         `json:"optimistic,omitempty"`
	Code       string       `json:"code,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type inboundFrame struct {
	Type    string `json:"type"`
	View    string `json:"view"`
	ID      uint   `json:"id"`
	Hashtag string `json:"hashtag"`
	PostID  uint   `json:"post_id"`
	Liked   bool   `json:"liked"`
}

var dropNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

type liveView struct {
	view View
	req  SubscribeRequest
	subs []Subscription
}

// op is a unit of work for the client loop: exactly one field is set.
type op struct {
	frame []byte
	key   string
	event ChangeEvent
	done  func()
}

// Client is one websocket connection. Its views are owned by the run loop; every
// other goroutine talks to it through the inbox.
type Client struct {
	hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	UserID uint

	ctx     context.Context
	cancel  context.CancelFunc
	inbox   chan op
	wake    chan struct{}
	stale   atomic.Bool
	stopped chan struct{}

	stopOnce sync.Once
	sendMu   sync.RWMutex
	closed   bool
	authSub  Subscription

	views map[string]*liveView
}

func newClient(h *Hub, conn *websocket.Conn, userID uint) *Client {
	ctx, cancel := context.WithCancel(middleware.WithUserID(context.Background(), userID))
	return &Client{
		hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		UserID:  userID,
		ctx:     ctx,
		cancel:  cancel,
		inbox:   make(chan op, inboxBuffer),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		views:   make(map[string]*liveView),
	}
}

func viewKey(req SubscribeRequest) string {
	if req.View == ViewFeed {
		return ViewFeed + ":" + req.Hashtag
	}
	return req.View + ":" + strconv.FormatUint(uint64(req.ID), 10)
}

// HandleFrame queues one inbound frame for the loop. It blocks while the inbox is
// full and returns false once the client is stopped.
func (c *Client) HandleFrame(msg []byte) bool {
	select {
	case c.inbox <- op{frame: msg}:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// Done is closed after the loop has released every view.
func (c *Client) Done() <-chan struct{} { return c.stopped }

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		if c.authSub != nil {
			_ = c.authSub.Unsubscribe()
		}
		c.sendMu.Lock()
		c.closed = true
		close(c.Send)
		c.sendMu.Unlock()
	})
}

// deliver routes a feed event to the loop without blocking the feed. When the
// inbox is full the event is dropped and every view reloads on the next turn.
func (c *Client) deliver(key string, ev ChangeEvent) {
	select {
	case c.inbox <- op{key: key, event: ev}:
	case <-c.ctx.Done():
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues("inbox_full").Inc()
		c.stale.Store(true)
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

func (c *Client) post(done func()) {
	select {
	case c.inbox <- op{done: done}:
	case <-c.ctx.Done():
	}
}

func (c *Client) onAuthEvent(ev ChangeEvent) {
	var ae AuthEvent
	if err := ev.Decode(&ae); err != nil || ae.UserID != c.UserID {
		return
	}
	if ae.Kind == AuthSignedOut {
		c.sendFrame(Frame{Type: FrameSignedOut})
		c.hub.UnregisterClient(c)
		return
	}
	c.sendFrame(Frame{Type: FrameAuth, Data: ae})
}

func (c *Client) run() {
	defer close(c.stopped)
	defer c.closeAllViews()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
			c.reloadIfStale()
		case o := <-c.inbox:
			c.reloadIfStale()
			switch {
			case o.frame != nil:
				c.handleFrame(o.frame)
			case o.done != nil:
				o.done()
			default:
				c.handleEvent(o.key, o.event)
			}
		}
	}
}

func (c *Client) reloadIfStale() {
	if !c.stale.Swap(false) {
		return
	}
	for _, lv := range c.views {
		c.reloadAndSnapshot(lv)
	}
}

func (c *Client) handleFrame(msg []byte) {
	var in inboundFrame
	if err := json.Unmarshal(msg, &in); err != nil {
		c.sendFrame(Frame{Type: FrameError, Code: models.CodeValidation, Error: "malformed frame"})
		return
	}
	req := SubscribeRequest{View: in.View, ID: in.ID, Hashtag: in.Hashtag}

	switch in.Type {
	case "subscribe":
		c.subscribe(req)
	case "unsubscribe":
		c.unsubscribe(req)
	case "aura":
		c.toggleAura(in.PostID, in.Liked)
	case "ping":
		c.sendFrame(Frame{Type: FramePong})
	default:
		c.sendFrame(Frame{Type: FrameError, Code: models.CodeValidation, Error: "unknown frame type"})
	}
}

func (c *Client) subscribe(req SubscribeRequest) {
	key := viewKey(req)
	if lv, ok := c.views[key]; ok {
		c.sendSnapshot(lv)
		return
	}
	if len(c.views) >= maxViewsPerClient {
		c.sendFrame(Frame{Type: FrameError, View: req.View, ID: req.ID, Code: models.CodeRateLimited, Error: "too many open views"})
		return
	}
	if c.hub.views == nil || c.hub.feed == nil {
		c.sendFrame(Frame{Type: FrameError, View: req.View, ID: req.ID, Code: models.CodeInternal, Error: "live views are unavailable"})
		return
	}

	ctx := middleware.WithView(c.ctx, req.View)
	v, err := c.hub.views(ctx, c.UserID, req)
	if err != nil {
		c.sendViewError(req, err)
		return
	}

	lv := &liveView{view: v, req: req}
	for _, f := range v.Filters() {
		sub, err := c.hub.feed.Subscribe(ctx, f, func(ev ChangeEvent) { c.deliver(key, ev) })
		if err != nil {
			releaseSubs(lv.subs)
			middleware.Logger.ErrorContext(ctx, "failed to subscribe live view",
				slog.String("channel", f.Channel()),
				slog.String("error", err.Error()),
			)
			c.sendFrame(Frame{Type: FrameError, View: req.View, ID: req.ID, Code: models.CodeInternal, Error: "subscription failed"})
			return
		}
		lv.subs = append(lv.subs, sub)
	}

	if err := v.Reload(ctx); err != nil {
		releaseSubs(lv.subs)
		c.sendViewError(req, err)
		return
	}
	c.views[key] = lv
	observability.LiveViews.WithLabelValues(v.Kind()).Inc()
	c.sendSnapshot(lv)
}

func (c *Client) unsubscribe(req SubscribeRequest) {
	key := viewKey(req)
	lv, ok := c.views[key]
	if !ok {
		return
	}
	c.closeView(key, lv)
	c.sendFrame(Frame{Type: FrameClosed, View: req.View, ID: req.ID})
}

func (c *Client) closeView(key string, lv *liveView) {
	releaseSubs(lv.subs)
	delete(c.views, key)
	observability.LiveViews.WithLabelValues(lv.view.Kind()).Dec()
}

func (c *Client) closeAllViews() {
	for key, lv := range c.views {
		c.closeView(key, lv)
	}
}

func releaseSubs(subs []Subscription) {
	for _, s := range subs {
		_ = s.Unsubscribe()
	}
}

func (c *Client) handleEvent(key string, ev ChangeEvent) {
	lv, ok := c.views[key]
	if !ok {
		return
	}
	ctx := middleware.WithView(c.ctx, lv.req.View)
	d, err := ApplyAndReload(ctx, lv.view, ev)
	switch {
	case err != nil:
		middleware.Logger.WarnContext(ctx, "live view reload failed", slog.String("error", err.Error()))
		c.sendViewError(lv.req, err)
	case d == Patched:
		f := Frame{Type: FramePatch, View: lv.req.View, ID: lv.req.ID, Event: &ev}
		if s, ok := lv.view.(Summarizer); ok {
			f.Summary = s.Summary()
		}
		c.sendFrame(f)
	case d == Refetch:
		c.sendSnapshot(lv)
	}
}

func (c *Client) reloadAndSnapshot(lv *liveView) {
	if err := lv.view.Reload(middleware.WithView(c.ctx, lv.req.View)); err != nil {
		c.sendViewError(lv.req, err)
		return
	}
	c.sendSnapshot(lv)
}

func (c *Client) toggleAura(postID uint, liked bool) {
	if c.hub.toggleAura == nil || postID == 0 {
		c.sendFrame(Frame{Type: FrameError, Code: models.CodeValidation, Error: "aura toggles are unavailable"})
		return
	}

	var rollbacks []func()
	for _, lv := range c.views {
		fv, ok := lv.view.(*FeedView)
		if !ok {
			continue
		}
		if rb, applied := fv.ApplyOptimistic(postID, liked); applied {
			rollbacks = append(rollbacks, rb)
			c.sendPostPatch(lv, fv, postID, true)
		}
	}

	go func() {
		err := c.hub.toggleAura(c.ctx, c.UserID, postID, liked)
		if err == nil {
			return
		}
		c.post(func() {
			for _, rb := range rollbacks {
				rb()
			}
			for _, lv := range c.views {
				if fv, ok := lv.view.(*FeedView); ok {
					c.sendPostPatch(lv, fv, postID, false)
				}
			}
			code, msg := errorCode(err)
			c.sendFrame(Frame{Type: FrameError, View: ViewFeed, ID: postID, Code: code, Error: msg})
		})
	}()
}

func (c *Client) sendPostPatch(lv *liveView, fv *FeedView, postID uint, optimistic bool) {
	if p, ok := fv.Post(postID); ok {
		c.sendFrame(Frame{Type: FramePatch, View: lv.req.View, ID: lv.req.ID, Data: p, Optimistic: optimistic})
	}
}

func (c *Client) sendSnapshot(lv *liveView) {
	c.sendFrame(Frame{Type: FrameSnapshot, View: lv.req.View, ID: lv.req.ID, Data: lv.view.Snapshot()})
}

func (c *Client) sendViewError(req SubscribeRequest, err error) {
	code, msg := errorCode(err)
	c.sendFrame(Frame{Type: FrameError, View: req.View, ID: req.ID, Code: code, Error: msg})
}

func errorCode(err error) (string, string) {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code != models.CodeInternal {
		return appErr.Code, appErr.Message
	}
	return models.CodeInternal, "live view failed"
}

func (c *Client) sendFrame(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		middleware.Logger.ErrorContext(c.ctx, "failed to encode frame", slog.String("type", f.Type), slog.String("error", err.Error()))
		return
	}
	c.TrySend(data)
}

// TrySend queues message without blocking. When the buffer is full the message is
// dropped and a best-effort drop notice tells the client to re-fetch.
func (c *Client) TrySend(message []byte) {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		return
	}

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
		middleware.Logger.Warn("websocket buffer full, dropped message", slog.Uint64("user_id", uint64(c.UserID)))
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}

// ReadPump pumps frames from the websocket connection to the loop.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket read failed",
					slog.Uint64("user_id", uint64(c.UserID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		if !c.HandleFrame(message) {
			return
		}
	}
}

// WritePump pumps queued frames to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				if c.hub.isClosed() {
					closeMsg = websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
				}
				_ = c.Conn.WriteMessage(websocket.CloseMessage, closeMsg)
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
