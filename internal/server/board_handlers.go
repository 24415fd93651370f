// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"time"

	"campushub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPolls handles GET /api/polls
func (s *Server) GetPolls(c *fiber.Ctx) error {
	polls, err := s.pollService.ListPolls(c.UserContext(), currentUserID(c), parsePagination(c, 20))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(polls)
}

// GetPoll handles GET /api/polls/:id
func (s *Server) GetPoll(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	poll, err := s.pollService.GetPoll(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(poll)
}

// CreatePoll handles POST /api/polls
func (s *Server) CreatePoll(c *fiber.Ctx) error {
	var req struct {
		Question  string     `json:"question"`
		Options   []string   `json:"options"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	poll, err := s.pollService.CreatePoll(c.UserContext(), service.CreatePollInput{
		UserID:    currentUserID(c),
		Question:  req.Question,
		Options:   req.Options,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(poll)
}

// VotePoll handles POST /api/polls/:id/vote. Voting again moves the vote.
func (s *Server) VotePoll(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		OptionID uint `json:"option_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	poll, err := s.pollService.Vote(c.UserContext(), currentUserID(c), id, req.OptionID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(poll)
}

// DeletePoll handles DELETE /api/polls/:id
func (s *Server) DeletePoll(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.pollService.DeletePoll(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetConfessions handles GET /api/confessions
func (s *Server) GetConfessions(c *fiber.Ctx) error {
	confessions, err := s.confessionService.List(c.UserContext(), currentUserID(c), parsePagination(c, 20))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(confessions)
}

// CreateConfession handles POST /api/confessions. The author is stored but never returned.
func (s *Server) CreateConfession(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	confession, err := s.confessionService.Create(c.UserContext(), currentUserID(c), req.Content)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(confession)
}

// ToggleConfessionAura handles POST /api/confessions/:id/aura
func (s *Server) ToggleConfessionAura(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.confessionService.ToggleAura(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(auraBody(id, res))
}

// GetConfessionComments handles GET /api/confessions/:id/comments
func (s *Server) GetConfessionComments(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.confessionService.ListComments(c.UserContext(), id, parsePagination(c, 50))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comments)
}

// CreateConfessionComment handles POST /api/confessions/:id/comments
func (s *Server) CreateConfessionComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.confessionService.Comment(c.UserContext(), service.CreateConfessionCommentInput{
		UserID:       currentUserID(c),
		ConfessionID: id,
		ParentID:     req.ParentID,
		Content:      req.Content,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteConfession handles DELETE /api/confessions/:id
func (s *Server) DeleteConfession(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.confessionService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetListings handles GET /api/marketplace?category=...&status=...&seller_id=...&q=...
func (s *Server) GetListings(c *fiber.Ctx) error {
	sellerID, err := queryID(c, "seller_id")
	if err != nil {
		return nil
	}
	in := service.ListListingsInput{
		ViewerID: currentUserID(c),
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Search:   c.Query("q"),
		Page:     parsePagination(c, 20),
	}
	if sellerID != nil {
		in.SellerID = *sellerID
	}

	listings, err := s.marketplaceService.ListListings(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(listings)
}

// GetListing handles GET /api/marketplace/:id
func (s *Server) GetListing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	listing, err := s.marketplaceService.GetListing(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(listing)
}

// CreateListing handles POST /api/marketplace
func (s *Server) CreateListing(c *fiber.Ctx) error {
	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		PriceCents  int64    `json:"price_cents"`
		Category    string   `json:"category"`
		ImageURLs   []string `json:"image_urls"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	listing, err := s.marketplaceService.CreateListing(c.UserContext(), service.CreateListingInput{
		UserID:      currentUserID(c),
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(listing)
}

// MarkListingSold handles POST /api/marketplace/:id/sold
func (s *Server) MarkListingSold(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	listing, err := s.marketplaceService.MarkSold(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(listing)
}

// DeleteListing handles DELETE /api/marketplace/:id
func (s *Server) DeleteListing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.marketplaceService.DeleteListing(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
