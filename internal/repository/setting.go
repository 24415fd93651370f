package repository

import (
	"context"
	"time"

	"campushub/internal/cache"
	"campushub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository stores site-wide key/value settings.
type SettingRepository interface {
	All(ctx context.Context) (map[string]string, error)
	Get(ctx context.Context, key string) (*models.SiteSetting, error)
	Upsert(ctx context.Context, key, value string) (*models.SiteSetting, error)
}

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository returns a new SettingRepository.
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) All(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	err := cache.Aside(ctx, cache.SettingsAllKey, &out, cache.SettingTTL, func() error {
		var rows []models.SiteSetting
		if err := r.db.WithContext(ctx).Order("key ASC").Find(&rows).Error; err != nil {
			return models.NewInternalError(err)
		}
		for _, s := range rows {
			out[s.Key] = s.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *settingRepository) Get(ctx context.Context, key string) (*models.SiteSetting, error) {
	var s models.SiteSetting
	err := cache.Aside(ctx, cache.SettingKey(key), &s, cache.SettingTTL, func() error {
		if err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
			return notFoundOr(err, "Setting", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingRepository) Upsert(ctx context.Context, key, value string) (*models.SiteSetting, error) {
	s := models.SiteSetting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.InvalidateSetting(ctx, key)
	return &s, nil
}
