package service

import (
	"context"
	"strings"

	"campushub/internal/models"
	"campushub/internal/repository"
)

const (
	maxSettingKeyLength   = 100
	maxSettingValueLength = 4000
)

type SettingService struct {
	settings repository.SettingRepository
	guard    *Guard
}

func NewSettingService(settings repository.SettingRepository, guard *Guard) *SettingService {
	return &SettingService{settings: settings, guard: guard}
}

func (s *SettingService) All(ctx context.Context) (map[string]string, error) {
	return s.settings.All(ctx)
}

func (s *SettingService) Get(ctx context.Context, key string) (*models.SiteSetting, error) {
	return s.settings.Get(ctx, strings.TrimSpace(key))
}

// Upsert writes a setting. Admin only.
func (s *SettingService) Upsert(ctx context.Context, userID uint, key, value string) (*models.SiteSetting, error) {
	if err := s.guard.RequireAdmin(ctx, userID); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxSettingKeyLength {
		return nil, models.NewValidationError("key must be 1-100 characters")
	}
	if len(value) > maxSettingValueLength {
		return nil, models.NewValidationError("value is too long")
	}
	return s.settings.Upsert(ctx, key, strings.TrimSpace(value))
}
