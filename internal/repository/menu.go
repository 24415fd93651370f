package repository

import (
	"context"
	"errors"

	"campushub/internal/cache"
	"campushub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MenuRepository stores one mess menu per date.
type MenuRepository interface {
	GetByDate(ctx context.Context, date string) (*models.MessMenu, error)
	Upsert(ctx context.Context, menu *models.MessMenu) error
}

type menuRepository struct {
	db *gorm.DB
}

// NewMenuRepository returns a new MenuRepository.
func NewMenuRepository(db *gorm.DB) MenuRepository {
	return &menuRepository{db: db}
}

// GetByDate returns (nil, nil) when no menu is stored for date.
func (r *menuRepository) GetByDate(ctx context.Context, date string) (*models.MessMenu, error) {
	var menu models.MessMenu
	err := cache.Aside(ctx, cache.MenuKey(date), &menu, cache.MenuTTL, func() error {
		return r.db.WithContext(ctx).Where("date = ?", date).First(&menu).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &menu, nil
}

// Upsert replaces the menu stored for menu.Date.
func (r *menuRepository) Upsert(ctx context.Context, menu *models.MessMenu) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"breakfast", "lunch", "snacks", "dinner", "source", "image_url", "updated_by", "updated_at"}),
	}).Create(menu).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.MenuKey(menu.Date))
	var saved models.MessMenu
	if err := r.db.WithContext(ctx).Where("date = ?", menu.Date).First(&saved).Error; err != nil {
		return models.NewInternalError(err)
	}
	*menu = saved
	return nil
}
