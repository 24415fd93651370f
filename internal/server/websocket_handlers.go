// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"campushub/internal/middleware"
	"campushub/internal/models"
	"campushub/internal/realtime"
	"campushub/internal/repository"
	"campushub/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// liveFeedSize is how many posts a live feed view holds.
const liveFeedSize = 50

// WebsocketHandler handles GET /api/ws. Clients open and close live views with
// subscribe/unsubscribe frames; the hub pushes snapshots and patches.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			middleware.Logger.Warn("websocket: unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"view_error","code":"UNAUTHORIZED","error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)
		ctx := middleware.WithUserID(context.Background(), userID)

		client, err := s.hub.Register(ctx, userID, conn)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "websocket: register failed", slog.String("error", err.Error()))
			code := models.CodeRateLimited
			if errors.Is(err, realtime.ErrHubClosed) {
				code = models.CodeUpstream
			}
			if msg, merr := json.Marshal(realtime.Frame{Type: realtime.FrameError, Code: code, Error: err.Error()}); merr == nil {
				_ = conn.WriteMessage(websocket.TextMessage, msg)
			}
			_ = conn.Close()
			return
		}

		middleware.Logger.DebugContext(ctx, "websocket: connected")

		go client.WritePump()
		// Read pump runs in the handler goroutine (blocking)
		client.ReadPump()
	})
}

// buildView authorizes a subscribe request and returns the unloaded view.
func (s *Server) buildView(ctx context.Context, userID uint, req realtime.SubscribeRequest) (realtime.View, error) {
	switch req.View {
	case realtime.ViewFeed:
		return realtime.NewFeedView(userID, req.Hashtag, s.loadFeed), nil
	case realtime.ViewConversation:
		if _, err := s.conversationService.Participant(ctx, req.ID, userID); err != nil {
			return nil, err
		}
		return realtime.NewConversationView(req.ID, userID, s.conversationService.LoadLive), nil
	case realtime.ViewComments:
		if _, err := s.postService.GetPost(ctx, req.ID, 0); err != nil {
			return nil, err
		}
		return realtime.NewCommentListView(req.ID, s.commentService.LoadLive), nil
	default:
		return nil, models.NewValidationError("unknown view " + req.View)
	}
}

func (s *Server) loadFeed(ctx context.Context, viewerID uint, hashtag string) ([]models.Post, error) {
	return s.postService.ListFeed(ctx, service.ListFeedInput{
		ViewerID: viewerID,
		Hashtag:  hashtag,
		Page:     repository.Page{Limit: liveFeedSize},
	})
}

// toggleAura performs the write behind an optimistic aura frame.
func (s *Server) toggleAura(ctx context.Context, userID, postID uint, liked bool) error {
	_, err := s.postService.SetAura(ctx, userID, postID, liked)
	return err
}
