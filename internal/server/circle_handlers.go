// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"campushub/internal/models"
	"campushub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetCircles handles GET /api/circles?q=...&mine=true
func (s *Server) GetCircles(c *fiber.Ctx) error {
	circles, err := s.circleService.ListCircles(c.UserContext(), currentUserID(c),
		c.Query("q"), c.QueryBool("mine", false), parsePagination(c, 20))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(circles)
}

// GetCircle handles GET /api/circles/:idOrSlug
func (s *Server) GetCircle(c *fiber.Ctx) error {
	circle, err := s.circleService.GetCircle(c.UserContext(), currentUserID(c), c.Params("idOrSlug"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(circle)
}

// CreateCircle handles POST /api/circles
func (s *Server) CreateCircle(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		Description string `json:"description"`
		AvatarURL   string `json:"avatar_url"`
		IsPrivate   bool   `json:"is_private"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	circle, err := s.circleService.CreateCircle(c.UserContext(), service.CreateCircleInput{
		UserID:      currentUserID(c),
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(circle)
}

// DeleteCircle handles DELETE /api/circles/:id
func (s *Server) DeleteCircle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.circleService.DeleteCircle(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// JoinCircle handles POST /api/circles/:id/join. Public circles are joined at once;
// private circles get a pending request (202).
func (s *Server) JoinCircle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.circleService.Join(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	if !res.Joined {
		return c.Status(fiber.StatusAccepted).JSON(res)
	}
	return c.JSON(res)
}

// LeaveCircle handles POST /api/circles/:id/leave
func (s *Server) LeaveCircle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.circleService.Leave(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetJoinRequests handles GET /api/circles/:id/requests
func (s *Server) GetJoinRequests(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	reqs, err := s.circleService.ListJoinRequests(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(reqs)
}

// ApproveJoinRequest handles POST /api/circles/requests/:requestId/approve
func (s *Server) ApproveJoinRequest(c *fiber.Ctx) error {
	return s.reviewJoinRequest(c, true)
}

// RejectJoinRequest handles POST /api/circles/requests/:requestId/reject
func (s *Server) RejectJoinRequest(c *fiber.Ctx) error {
	return s.reviewJoinRequest(c, false)
}

func (s *Server) reviewJoinRequest(c *fiber.Ctx, approve bool) error {
	id, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}
	req, err := s.circleService.ReviewJoinRequest(c.UserContext(), currentUserID(c), id, approve)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(req)
}

// GetCircleMembers handles GET /api/circles/:id/members
func (s *Server) GetCircleMembers(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	members, err := s.circleService.ListMembers(c.UserContext(), currentUserID(c), id, parsePagination(c, 50))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(members)
}

// SetCircleMemberRole handles PUT /api/circles/:id/members/:userId/role
func (s *Server) SetCircleMemberRole(c *fiber.Ctx) error {
	circleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req struct {
		Role models.CircleRole `json:"role"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.circleService.SetMemberRole(c.UserContext(), currentUserID(c), circleID, userID, req.Role); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetCirclePosts handles GET /api/circles/:id/posts
func (s *Server) GetCirclePosts(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	posts, err := s.circleService.ListPosts(c.UserContext(), currentUserID(c), id, parsePagination(c, 20))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(posts)
}

// CreateCirclePost handles POST /api/circles/:id/posts
func (s *Server) CreateCirclePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content   string   `json:"content"`
		ImageURLs []string `json:"image_urls"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.circleService.CreatePost(c.UserContext(), service.CreateCirclePostInput{
		UserID:    currentUserID(c),
		CircleID:  id,
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetCircleMessages handles GET /api/circles/:id/messages
func (s *Server) GetCircleMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	msgs, err := s.circleService.ListMessages(c.UserContext(), currentUserID(c), id, parsePagination(c, 50))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(msgs)
}

// SendCircleMessage handles POST /api/circles/:id/messages
func (s *Server) SendCircleMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	msg, err := s.circleService.SendMessage(c.UserContext(), currentUserID(c), id, req.Content)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}
