package service

import (
	"context"

	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

// ConfessionService runs the anonymous board. Author ids are stored for limits and
// moderation; every read returns DTOs without them.
type ConfessionService struct {
	confessions repository.ConfessionRepository
	guard       *Guard
}

type CreateConfessionCommentInput struct {
	UserID       uint
	ConfessionID uint
	ParentID     *uint
	Content      string
}

func NewConfessionService(confessions repository.ConfessionRepository, guard *Guard) *ConfessionService {
	return &ConfessionService{confessions: confessions, guard: guard}
}

func (s *ConfessionService) Create(ctx context.Context, userID uint, content string) (*models.ConfessionDTO, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionConfession, userID); err != nil {
		return nil, err
	}
	text, err := clean(validation.FieldConfession, content)
	if err != nil {
		return nil, err
	}
	c := &models.Confession{AuthorID: userID, Content: text}
	if err := s.confessions.Create(ctx, c); err != nil {
		return nil, err
	}
	dto := c.ToDTO(false)
	return &dto, nil
}

func (s *ConfessionService) List(ctx context.Context, viewerID uint, page repository.Page) ([]models.ConfessionDTO, error) {
	return s.confessions.List(ctx, viewerID, page)
}

func (s *ConfessionService) ToggleAura(ctx context.Context, userID, confessionID uint) (repository.AuraResult, error) {
	if err := requireUser(userID); err != nil {
		return repository.AuraResult{}, err
	}
	if err := s.guard.Allow(ratelimit.ActionLike, userID); err != nil {
		return repository.AuraResult{}, err
	}
	res, err := s.confessions.ToggleAura(ctx, confessionID, userID)
	if err != nil {
		return repository.AuraResult{}, err
	}
	// The toggler learns nothing about who wrote the confession.
	res.AuthorID = 0
	return res, nil
}

func (s *ConfessionService) Comment(ctx context.Context, in CreateConfessionCommentInput) (*models.ConfessionCommentDTO, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionComment, in.UserID); err != nil {
		return nil, err
	}
	text, err := clean(validation.FieldConfessionComment, in.Content)
	if err != nil {
		return nil, err
	}
	c := &models.ConfessionComment{
		ConfessionID: in.ConfessionID,
		AuthorID:     in.UserID,
		ParentID:     in.ParentID,
		Content:      text,
	}
	if err := s.confessions.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	dto := c.ToDTO()
	return &dto, nil
}

func (s *ConfessionService) ListComments(ctx context.Context, confessionID uint, page repository.Page) ([]models.ConfessionCommentDTO, error) {
	if _, err := s.confessions.GetByID(ctx, confessionID); err != nil {
		return nil, err
	}
	return s.confessions.ListComments(ctx, confessionID, page)
}

// Delete is a moderation action; authors cannot delete since they are anonymous.
func (s *ConfessionService) Delete(ctx context.Context, userID, confessionID uint) error {
	if err := s.guard.RequireAdmin(ctx, userID); err != nil {
		return err
	}
	return s.confessions.Delete(ctx, confessionID)
}
