package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"campushub/internal/models"
	"campushub/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildView_Authorization(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")

	var conv struct {
		ID uint `json:"id"`
	}
	env.expect(t, env.do(t, http.MethodPost, "/api/conversations",
		fiber.Map{"user_id": bob.id}, alice.token), http.StatusOK, &conv)

	var post struct {
		ID uint `json:"id"`
	}
	env.expect(t, env.do(t, http.MethodPost, "/api/posts",
		fiber.Map{"content": "live comments here"}, alice.token), http.StatusCreated, &post)

	tests := []struct {
		name     string
		userID   uint
		req      realtime.SubscribeRequest
		wantKind string
		wantCode string
	}{
		{"feed", carol.id, realtime.SubscribeRequest{View: realtime.ViewFeed}, realtime.ViewFeed, ""},
		{"hashtag feed", carol.id, realtime.SubscribeRequest{View: realtime.ViewFeed, Hashtag: "exams"}, realtime.ViewFeed, ""},
		{"participant conversation", bob.id, realtime.SubscribeRequest{View: realtime.ViewConversation, ID: conv.ID}, realtime.ViewConversation, ""},
		{"outsider conversation", carol.id, realtime.SubscribeRequest{View: realtime.ViewConversation, ID: conv.ID}, "", models.CodeForbidden},
		{"missing conversation", alice.id, realtime.SubscribeRequest{View: realtime.ViewConversation, ID: 9999}, "", models.CodeNotFound},
		{"comments", carol.id, realtime.SubscribeRequest{View: realtime.ViewComments, ID: post.ID}, realtime.ViewComments, ""},
		{"comments on missing post", carol.id, realtime.SubscribeRequest{View: realtime.ViewComments, ID: 9999}, "", models.CodeNotFound},
		{"unknown view", carol.id, realtime.SubscribeRequest{View: "gossip"}, "", models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := env.srv.buildView(context.Background(), tt.userID, tt.req)
			if tt.wantCode != "" {
				require.Error(t, err)
				var appErr *models.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantCode, appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, v.Kind())
		})
	}
}

func TestToggleAura_WritesThroughPostService(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "author")
	fan := env.user(t, "fan")

	var post struct {
		ID uint `json:"id"`
	}
	env.expect(t, env.do(t, http.MethodPost, "/api/posts",
		fiber.Map{"content": "optimistic"}, author.token), http.StatusCreated, &post)

	require.NoError(t, env.srv.toggleAura(context.Background(), fan.id, post.ID, true))
	require.NoError(t, env.srv.toggleAura(context.Background(), fan.id, post.ID, true))

	var got struct {
		AuraCount int  `json:"aura_count"`
		Liked     bool `json:"liked"`
	}
	env.expect(t, env.do(t, http.MethodGet, "/api/posts/"+strconv.Itoa(int(post.ID)), nil, fan.token),
		http.StatusOK, &got)
	assert.Equal(t, 1, got.AuraCount)
	assert.True(t, got.Liked)
}

// listen serves the app on a loopback port for clients that need a real socket.
func listen(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func readFrame(t *testing.T, conn *websocket.Conn) realtime.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f realtime.Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestWebsocket_FeedViewFollowsNewPosts(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.user(t, "viewer")
	author := env.user(t, "writer")
	addr := listen(t, env.app)

	var ticket struct {
		Ticket string `json:"ticket"`
	}
	env.expect(t, env.do(t, http.MethodPost, "/api/ws/ticket", nil, viewer.token), http.StatusOK, &ticket)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws?ticket="+ticket.Ticket, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(fiber.Map{"type": "subscribe", "view": realtime.ViewFeed}))
	snap := readFrame(t, conn)
	require.Equal(t, realtime.FrameSnapshot, snap.Type)
	assert.Equal(t, realtime.ViewFeed, snap.View)

	env.expect(t, env.do(t, http.MethodPost, "/api/posts",
		fiber.Map{"content": "fresh off the press"}, author.token), http.StatusCreated, nil)

	next := readFrame(t, conn)
	assert.Contains(t, []string{realtime.FramePatch, realtime.FrameSnapshot}, next.Type)
	assert.Equal(t, realtime.ViewFeed, next.View)
}

func TestWebsocket_ReusedTicketIsRejected(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.user(t, "onceonly")
	addr := listen(t, env.app)

	var ticket struct {
		Ticket string `json:"ticket"`
	}
	env.expect(t, env.do(t, http.MethodPost, "/api/ws/ticket", nil, viewer.token), http.StatusOK, &ticket)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws?ticket="+ticket.Ticket, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	_, resp, err = websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws?ticket="+ticket.Ticket, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
