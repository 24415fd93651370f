package service

import (
	"context"
	"time"

	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

type StoryService struct {
	stories repository.StoryRepository
	guard   *Guard
	now     func() time.Time
}

type CreateStoryInput struct {
	UserID    uint
	MediaURL  string
	MediaType string
	Caption   string
}

func NewStoryService(stories repository.StoryRepository, guard *Guard) *StoryService {
	return &StoryService{stories: stories, guard: guard, now: time.Now}
}

func (s *StoryService) CreateStory(ctx context.Context, in CreateStoryInput) (*models.Story, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionStory, in.UserID); err != nil {
		return nil, err
	}
	mediaURL, err := cleanMediaURL(in.MediaURL)
	if err != nil {
		return nil, err
	}
	if mediaURL == "" {
		return nil, models.NewValidationError("media_url is required")
	}
	mediaType := in.MediaType
	switch mediaType {
	case "":
		mediaType = "image"
	case "image", "video":
	default:
		return nil, models.NewValidationError("media_type must be image or video")
	}
	caption, err := clean(validation.FieldStoryCaption, in.Caption)
	if err != nil {
		return nil, err
	}

	now := s.now()
	story := &models.Story{
		UserID:    in.UserID,
		MediaURL:  mediaURL,
		MediaType: mediaType,
		Caption:   caption,
		CreatedAt: now,
		ExpiresAt: now.Add(models.StoryTTL),
	}
	if err := s.stories.Create(ctx, story); err != nil {
		return nil, err
	}
	return story, nil
}

// ListActive returns unexpired stories grouped by author.
func (s *StoryService) ListActive(ctx context.Context) ([]models.StoryGroup, error) {
	groups, err := s.stories.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []models.StoryGroup{}
	}
	return groups, nil
}

func (s *StoryService) DeleteStory(ctx context.Context, userID, storyID uint) error {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return err
	}
	if err := s.guard.OwnerOrAdmin(ctx, story.UserID, userID, "You can only delete your own stories"); err != nil {
		return err
	}
	return s.stories.Delete(ctx, storyID)
}

// PurgeExpired deletes stories past their expiry and returns how many were removed.
func (s *StoryService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.stories.DeleteExpired(ctx, s.now())
}
