// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"campushub/internal/repository"
	"campushub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts?hashtag=...
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListFeed(c.UserContext(), service.ListFeedInput{
		ViewerID: currentUserID(c),
		Hashtag:  c.Query("hashtag"),
		Page:     parsePagination(c, 20),
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(posts)
}

// SearchPosts handles GET /api/posts/search?q=...
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	posts, err := s.postService.SearchPosts(c.UserContext(), currentUserID(c), c.Query("q"), parsePagination(c, 10))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content   string   `json:"content"`
		ImageURLs []string `json:"image_urls"`
		VideoURL  string   `json:"video_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:    currentUserID(c),
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
		VideoURL:  req.VideoURL,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TogglePostAura handles POST /api/posts/:id/aura
func (s *Server) TogglePostAura(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.postService.ToggleAura(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(auraBody(id, res))
}

func auraBody(id uint, res repository.AuraResult) fiber.Map {
	return fiber.Map{
		"id":         id,
		"liked":      res.Liked,
		"aura_count": res.AuraCount,
	}
}

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.ListComments(c.UserContext(), id, parsePagination(c, 50))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
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

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:   currentUserID(c),
		PostID:   postID,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	if err := s.commentService.DeleteComment(c.UserContext(), currentUserID(c), commentID); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SavePost handles POST /api/posts/:id/save. Saving again moves the post to the
// given collection.
func (s *Server) SavePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		CollectionID *uint `json:"collection_id"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	saved, err := s.savedService.Save(c.UserContext(), currentUserID(c), postID, req.CollectionID)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(saved)
}

// UnsavePost handles DELETE /api/posts/:id/save
func (s *Server) UnsavePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.savedService.Unsave(c.UserContext(), currentUserID(c), postID); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSavedPosts handles GET /api/saved?collection_id=...
func (s *Server) GetSavedPosts(c *fiber.Ctx) error {
	collectionID, err := queryID(c, "collection_id")
	if err != nil {
		return nil
	}
	saved, err := s.savedService.List(c.UserContext(), currentUserID(c), collectionID, parsePagination(c, 20))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(saved)
}

// GetCollections handles GET /api/saved/collections
func (s *Server) GetCollections(c *fiber.Ctx) error {
	collections, err := s.savedService.ListCollections(c.UserContext(), currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(collections)
}

// CreateCollection handles POST /api/saved/collections
func (s *Server) CreateCollection(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	collection, err := s.savedService.CreateCollection(c.UserContext(), currentUserID(c), req.Name)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(collection)
}

// GetStories handles GET /api/stories
func (s *Server) GetStories(c *fiber.Ctx) error {
	groups, err := s.storyService.ListActive(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(groups)
}

// CreateStory handles POST /api/stories
func (s *Server) CreateStory(c *fiber.Ctx) error {
	var req struct {
		MediaURL  string `json:"media_url"`
		MediaType string `json:"media_type"`
		Caption   string `json:"caption"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	story, err := s.storyService.CreateStory(c.UserContext(), service.CreateStoryInput{
		UserID:    currentUserID(c),
		MediaURL:  req.MediaURL,
		MediaType: req.MediaType,
		Caption:   req.Caption,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(story)
}

// DeleteStory handles DELETE /api/stories/:id
func (s *Server) DeleteStory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.storyService.DeleteStory(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PurgeStories handles POST /api/admin/stories/purge
func (s *Server) PurgeStories(c *fiber.Ctx) error {
	n, err := s.storyService.PurgeExpired(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}
