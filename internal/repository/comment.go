package repository

import (
	"context"

	"campushub/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines data operations for post comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, page Page) ([]models.Comment, error)
	Delete(ctx context.Context, id uint) ([]uint, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository returns a new CommentRepository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create stores the comment and bumps the post's comment counter.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Post{}, comment.PostID).Error; err != nil {
			return notFoundOr(err, "Post", comment.PostID)
		}
		if comment.ParentID != nil {
			var parent models.Comment
			if err := tx.Select("id", "post_id").First(&parent, *comment.ParentID).Error; err != nil {
				return notFoundOr(err, "Comment", *comment.ParentID)
			}
			if parent.PostID != comment.PostID {
				return models.NewValidationError("Reply must belong to the same post")
			}
		}
		if err := tx.Create(comment).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			Update("comment_count", gorm.Expr("comment_count + 1")).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Preload("Author").First(comment, comment.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &c, nil
}

// ListByPost returns comments oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, page Page) ([]models.Comment, error) {
	var rows []models.Comment
	err := page.apply(r.db.WithContext(ctx).Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC")).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// Delete removes a comment and its direct replies and returns every removed id.
func (r *commentRepository) Delete(ctx context.Context, id uint) ([]uint, error) {
	var removed []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Comment
		if err := tx.First(&c, id).Error; err != nil {
			return notFoundOr(err, "Comment", id)
		}
		if err := tx.Model(&models.Comment{}).Where("id = ? OR parent_id = ?", id, id).
			Pluck("id", &removed).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Where("id IN ?", removed).Delete(&models.Comment{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		n := len(removed)
		if err := tx.Model(&models.Post{}).Where("id = ?", c.PostID).
			Update("comment_count", gorm.Expr("CASE WHEN comment_count >= ? THEN comment_count - ? ELSE 0 END", n, n)).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
