// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"time"

	"campushub/internal/models"
	"campushub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/profiles/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/profiles/me. Absent fields are left unchanged.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username    *string `json:"username"`
		DisplayName *string `json:"display_name"`
		Bio         *string `json:"bio"`
		AvatarURL   *string `json:"avatar_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:      currentUserID(c),
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// Onboard handles POST /api/onboarding
func (s *Server) Onboard(c *fiber.Ctx) error {
	var req struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Bio         string `json:"bio"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.Onboard(c.UserContext(), service.OnboardInput{
		UserID:      currentUserID(c),
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// SearchProfiles handles GET /api/profiles/search?q=...
func (s *Server) SearchProfiles(c *fiber.Ctx) error {
	profiles, err := s.profileService.Search(c.UserContext(), currentUserID(c), c.Query("q"), c.QueryInt("limit", 0))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profiles)
}

// GetProfile handles GET /api/profiles/:id
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.profileService.GetProfile(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// GetProfileByUsername handles GET /api/profiles/username/:username
func (s *Server) GetProfileByUsername(c *fiber.Ctx) error {
	profile, err := s.profileService.GetByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// GetProfilePosts handles GET /api/profiles/:id/posts
func (s *Server) GetProfilePosts(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	posts, err := s.postService.ListFeed(c.UserContext(), service.ListFeedInput{
		ViewerID: currentUserID(c),
		UserID:   id,
		Page:     parsePagination(c, 20),
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(posts)
}

// GetLeaderboard handles GET /api/leaderboard
func (s *Server) GetLeaderboard(c *fiber.Ctx) error {
	profiles, err := s.profileService.Leaderboard(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profiles)
}

// SetProfileRole handles PUT /api/admin/profiles/:id/role
func (s *Server) SetProfileRole(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Role models.Role `json:"role"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.SetRole(c.UserContext(), currentUserID(c), id, req.Role)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// SetProfileVerification handles PUT /api/admin/profiles/:id/verification
func (s *Server) SetProfileVerification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Verified bool       `json:"verified"`
		Until    *time.Time `json:"until"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.SetVerification(c.UserContext(), service.SetVerificationInput{
		ActorID:  currentUserID(c),
		TargetID: id,
		Verified: req.Verified,
		Until:    req.Until,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}
