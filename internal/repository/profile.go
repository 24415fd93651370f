package repository

import (
	"context"
	"errors"
	"time"

	"campushub/internal/cache"
	"campushub/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Profile, error)
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	GetMany(ctx context.Context, ids []uint) (map[uint]*models.Profile, error)
	Search(ctx context.Context, pattern string, limit int) ([]models.Profile, error)
	Leaderboard(ctx context.Context, limit int) ([]models.Profile, error)
	Update(ctx context.Context, id uint, fields map[string]any) (*models.Profile, error)
	SetRole(ctx context.Context, id uint, role models.Role) (*models.Profile, error)
	SetVerification(ctx context.Context, id uint, verified bool, until *time.Time) (*models.Profile, error)

	// Credential access. These bypass the cache because cached profiles drop email and hash.
	GetProfile(ctx context.Context, id uint) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	CreateProfile(ctx context.Context, p *models.Profile) error
	UpdatePasswordHash(ctx context.Context, id uint, hash string) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	var p models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(id), &p, cache.ProfileTTL, func() error {
		if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
			return notFoundOr(err, "Profile", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var p models.Profile
	err := cache.Aside(ctx, cache.UsernameKey(username), &p, cache.ProfileTTL, func() error {
		if err := r.db.WithContext(ctx).Where("username = ?", username).First(&p).Error; err != nil {
			return notFoundOr(err, "Profile", username)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) GetMany(ctx context.Context, ids []uint) (map[uint]*models.Profile, error) {
	ids = uniqueIDs(ids)
	out := make(map[uint]*models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// Search matches a username or display-name prefix. pattern must already be escaped.
func (r *profileRepository) Search(ctx context.Context, pattern string, limit int) ([]models.Profile, error) {
	limit = Page{Limit: limit}.normalize().Limit
	like := prefixPattern(pattern)
	var rows []models.Profile
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ?"+likeEscape+" OR LOWER(display_name) LIKE ?"+likeEscape, like, like).
		Order("aura DESC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *profileRepository) Leaderboard(ctx context.Context, limit int) ([]models.Profile, error) {
	limit = Page{Limit: limit}.normalize().Limit
	var rows []models.Profile
	err := r.db.WithContext(ctx).
		Where("username IS NOT NULL").
		Order("aura DESC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *profileRepository) Update(ctx context.Context, id uint, fields map[string]any) (*models.Profile, error) {
	before, err := r.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, models.NewConflictError("Username is already taken")
			}
			return nil, models.NewInternalError(err)
		}
	}
	cache.InvalidateProfile(ctx, id, before.Handle())
	after, err := r.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	cache.InvalidateProfile(ctx, id, after.Handle())
	return after, nil
}

func (r *profileRepository) SetRole(ctx context.Context, id uint, role models.Role) (*models.Profile, error) {
	return r.Update(ctx, id, map[string]any{"role": role})
}

func (r *profileRepository) SetVerification(ctx context.Context, id uint, verified bool, until *time.Time) (*models.Profile, error) {
	if !verified {
		until = nil
	}
	return r.Update(ctx, id, map[string]any{"is_verified": verified, "verified_until": until})
}

func (r *profileRepository) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFoundOr(err, "Profile", id)
	}
	return &p, nil
}

func (r *profileRepository) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &p, nil
}

func (r *profileRepository) CreateProfile(ctx context.Context, p *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("An account with this email already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *profileRepository) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", id)
	}
	return nil
}
