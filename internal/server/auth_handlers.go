// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"strconv"

	"campushub/internal/cache"
	"campushub/internal/models"
	"campushub/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse is what sign-up, sign-in and session reads return.
type sessionResponse struct {
	Token     *session.Token   `json:"token,omitempty"`
	Session   *session.Session `json:"session"`
	Onboarded bool             `json:"onboarded"`
	IsAdmin   bool             `json:"is_admin"`
}

func newSessionResponse(sess *session.Session, tok *session.Token) sessionResponse {
	return sessionResponse{
		Token:     tok,
		Session:   sess,
		Onboarded: sess.Onboarded(),
		IsAdmin:   sess.IsAdmin(),
	}
}

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req credentials
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email and password are required"))
	}

	sess, tok, err := s.sessions.SignUp(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newSessionResponse(sess, &tok))
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentials
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	sess, tok, err := s.sessions.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(newSessionResponse(sess, &tok))
}

// Logout handles POST /api/auth/logout. The token is revoked and open live-view
// connections of the user are told to close.
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*session.Claims)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}
	if err := s.sessions.SignOut(c.UserContext(), claims); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSession handles GET /api/auth/session
func (s *Server) GetSession(c *fiber.Ctx) error {
	sess, ok := session.FromContext(c.UserContext())
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}
	return c.JSON(newSessionResponse(sess, nil))
}

// UpdatePassword handles PUT /api/auth/password
func (s *Server) UpdatePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.sessions.UpdatePassword(c.UserContext(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers on a
// websocket upgrade, so they trade the bearer token for a short-lived single-use ticket.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewUpstreamError("Live updates are unavailable", nil))
	}
	ticket := uuid.NewString()
	userID := strconv.FormatUint(uint64(currentUserID(c)), 10)
	if err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket), userID, cache.WSTicketTTL).Err(); err != nil {
		return respond(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}
