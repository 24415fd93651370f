package repository

import (
	"context"
	"time"

	"campushub/internal/models"

	"gorm.io/gorm"
)

// StoryRepository stores 24h stories.
type StoryRepository interface {
	Create(ctx context.Context, s *models.Story) error
	GetByID(ctx context.Context, id uint) (*models.Story, error)
	ListActive(ctx context.Context, now time.Time) ([]models.StoryGroup, error)
	Delete(ctx context.Context, id uint) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type storyRepository struct {
	db *gorm.DB
}

// NewStoryRepository returns a new StoryRepository.
func NewStoryRepository(db *gorm.DB) StoryRepository {
	return &storyRepository{db: db}
}

func (r *storyRepository) Create(ctx context.Context, s *models.Story) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *storyRepository) GetByID(ctx context.Context, id uint) (*models.Story, error) {
	var s models.Story
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, notFoundOr(err, "Story", id)
	}
	return &s, nil
}

// ListActive groups unexpired stories by author. Groups are ordered by each author's
// newest story, stories inside a group oldest first.
func (r *storyRepository) ListActive(ctx context.Context, now time.Time) ([]models.StoryGroup, error) {
	var rows []models.Story
	if err := r.db.WithContext(ctx).Preload("Author").
		Where("expires_at > ?", now).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var groups []models.StoryGroup
	index := make(map[uint]int)
	for _, s := range rows {
		i, ok := index[s.UserID]
		if !ok {
			i = len(groups)
			index[s.UserID] = i
			groups = append(groups, models.StoryGroup{Author: s.Author})
		}
		groups[i].Stories = append([]models.Story{s}, groups[i].Stories...)
	}
	return groups, nil
}

func (r *storyRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Story{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *storyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Story{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
