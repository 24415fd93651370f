// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"campushub/internal/models"
	"campushub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetConversations handles GET /api/conversations
func (s *Server) GetConversations(c *fiber.Ctx) error {
	convs, err := s.conversationService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(convs)
}

// StartConversation handles POST /api/conversations. It returns the existing
// conversation with the other user when there is one.
func (s *Server) StartConversation(c *fiber.Ctx) error {
	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("user_id is required"))
	}

	conv, err := s.conversationService.Start(c.UserContext(), currentUserID(c), req.UserID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(conv)
}

// GetMessages handles GET /api/conversations/:id/messages
func (s *Server) GetMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	msgs, err := s.conversationService.Messages(c.UserContext(), currentUserID(c), id, parsePagination(c, 50))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(msgs)
}

// SendMessage handles POST /api/conversations/:id/messages
func (s *Server) SendMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content      string `json:"content"`
		SharedPostID *uint  `json:"shared_post_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.conversationService.Send(c.UserContext(), service.SendMessageInput{
		SenderID:       currentUserID(c),
		ConversationID: id,
		Content:        req.Content,
		SharedPostID:   req.SharedPostID,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkConversationRead handles POST /api/conversations/:id/read
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	n, err := s.conversationService.MarkRead(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"marked": n})
}
