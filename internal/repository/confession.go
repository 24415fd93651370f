package repository

import (
	"context"
	"errors"

	"campushub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfessionRepository stores anonymous confessions. Rows keep author_id for moderation;
// callers expose them only through the DTOs.
type ConfessionRepository interface {
	Create(ctx context.Context, c *models.Confession) error
	GetByID(ctx context.Context, id uint) (*models.Confession, error)
	List(ctx context.Context, viewerID uint, page Page) ([]models.ConfessionDTO, error)
	ToggleAura(ctx context.Context, id, userID uint) (AuraResult, error)
	CreateComment(ctx context.Context, c *models.ConfessionComment) error
	ListComments(ctx context.Context, confessionID uint, page Page) ([]models.ConfessionCommentDTO, error)
	Delete(ctx context.Context, id uint) error
}

type confessionRepository struct {
	db *gorm.DB
}

// NewConfessionRepository returns a new ConfessionRepository.
func NewConfessionRepository(db *gorm.DB) ConfessionRepository {
	return &confessionRepository{db: db}
}

func (r *confessionRepository) Create(ctx context.Context, c *models.Confession) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *confessionRepository) GetByID(ctx context.Context, id uint) (*models.Confession, error) {
	var c models.Confession
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "Confession", id)
	}
	return &c, nil
}

func (r *confessionRepository) List(ctx context.Context, viewerID uint, page Page) ([]models.ConfessionDTO, error) {
	var rows []models.Confession
	if err := page.apply(r.db.WithContext(ctx).Order("created_at DESC, id DESC")).Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	liked := map[uint]struct{}{}
	if viewerID != 0 && len(rows) > 0 {
		ids := make([]uint, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		var likedIDs []uint
		if err := r.db.WithContext(ctx).Model(&models.ConfessionAura{}).
			Where("user_id = ? AND confession_id IN ?", viewerID, ids).
			Pluck("confession_id", &likedIDs).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		for _, id := range likedIDs {
			liked[id] = struct{}{}
		}
	}

	out := make([]models.ConfessionDTO, len(rows))
	for i, c := range rows {
		_, ok := liked[c.ID]
		out[i] = c.ToDTO(ok)
	}
	return out, nil
}

func (r *confessionRepository) ToggleAura(ctx context.Context, id, userID uint) (AuraResult, error) {
	var res AuraResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Confession{}, id).Error; err != nil {
			return notFoundOr(err, "Confession", id)
		}
		var existing models.ConfessionAura
		err := tx.Where("confession_id = ? AND user_id = ?", id, userID).First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewInternalError(err)
		}

		delta := 1
		if err == nil {
			if err := tx.Delete(&existing).Error; err != nil {
				return models.NewInternalError(err)
			}
			delta = -1
		} else {
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.ConfessionAura{ConfessionID: id, UserID: userID})
			if ins.Error != nil {
				return models.NewInternalError(ins.Error)
			}
			if ins.RowsAffected == 0 {
				delta = 0
			}
		}
		if delta != 0 {
			if err := tx.Model(&models.Confession{}).Where("id = ?", id).
				Update("aura_count", gorm.Expr("aura_count + ?", delta)).Error; err != nil {
				return models.NewInternalError(err)
			}
		}

		var count int
		if err := tx.Model(&models.Confession{}).Where("id = ?", id).Select("aura_count").Scan(&count).Error; err != nil {
			return models.NewInternalError(err)
		}
		res = AuraResult{Liked: delta >= 0, AuraCount: count, Changed: delta != 0}
		return nil
	})
	return res, err
}

func (r *confessionRepository) CreateComment(ctx context.Context, c *models.ConfessionComment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Confession{}, c.ConfessionID).Error; err != nil {
			return notFoundOr(err, "Confession", c.ConfessionID)
		}
		if c.ParentID != nil {
			var parent models.ConfessionComment
			if err := tx.Select("id", "confession_id").First(&parent, *c.ParentID).Error; err != nil {
				return notFoundOr(err, "Comment", *c.ParentID)
			}
			if parent.ConfessionID != c.ConfessionID {
				return models.NewValidationError("Reply must belong to the same confession")
			}
		}
		if err := tx.Create(c).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Model(&models.Confession{}).Where("id = ?", c.ConfessionID).
			Update("comment_count", gorm.Expr("comment_count + 1")).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
}

func (r *confessionRepository) ListComments(ctx context.Context, confessionID uint, page Page) ([]models.ConfessionCommentDTO, error) {
	var rows []models.ConfessionComment
	err := page.apply(r.db.WithContext(ctx).
		Where("confession_id = ?", confessionID).
		Order("created_at ASC, id ASC")).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make([]models.ConfessionCommentDTO, len(rows))
	for i, c := range rows {
		out[i] = c.ToDTO()
	}
	return out, nil
}

func (r *confessionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("confession_id = ?", id).Delete(&models.ConfessionAura{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Where("confession_id = ?", id).Delete(&models.ConfessionComment{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		res := tx.Delete(&models.Confession{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Confession", id)
		}
		return nil
	})
}
