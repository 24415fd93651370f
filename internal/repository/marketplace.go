package repository

import (
	"context"

	"campushub/internal/models"

	"gorm.io/gorm"
)

// ListingQuery filters marketplace listings.
type ListingQuery struct {
	Category string
	Status   models.ListingStatus
	SellerID uint
	Search   string
	Page     Page
}

// MarketplaceRepository stores marketplace listings.
type MarketplaceRepository interface {
	Create(ctx context.Context, l *models.MarketplaceListing) error
	GetByID(ctx context.Context, id uint) (*models.MarketplaceListing, error)
	List(ctx context.Context, q ListingQuery) ([]models.MarketplaceListing, error)
	SetStatus(ctx context.Context, id uint, status models.ListingStatus) error
	Delete(ctx context.Context, id uint) error
}

type marketplaceRepository struct {
	db *gorm.DB
}

// NewMarketplaceRepository returns a new MarketplaceRepository.
func NewMarketplaceRepository(db *gorm.DB) MarketplaceRepository {
	return &marketplaceRepository{db: db}
}

func (r *marketplaceRepository) Create(ctx context.Context, l *models.MarketplaceListing) error {
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *marketplaceRepository) GetByID(ctx context.Context, id uint) (*models.MarketplaceListing, error) {
	var l models.MarketplaceListing
	if err := r.db.WithContext(ctx).Preload("Seller").First(&l, id).Error; err != nil {
		return nil, notFoundOr(err, "Listing", id)
	}
	return &l, nil
}

func (r *marketplaceRepository) List(ctx context.Context, q ListingQuery) ([]models.MarketplaceListing, error) {
	tx := r.db.WithContext(ctx).Preload("Seller")
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.SellerID != 0 {
		tx = tx.Where("seller_id = ?", q.SellerID)
	}
	if q.Search != "" {
		like := containsPattern(q.Search)
		tx = tx.Where("LOWER(title) LIKE ?"+likeEscape+" OR LOWER(description) LIKE ?"+likeEscape, like, like)
	}
	var rows []models.MarketplaceListing
	if err := q.Page.apply(tx.Order("created_at DESC, id DESC")).Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *marketplaceRepository) SetStatus(ctx context.Context, id uint, status models.ListingStatus) error {
	res := r.db.WithContext(ctx).Model(&models.MarketplaceListing{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Listing", id)
	}
	return nil
}

func (r *marketplaceRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.MarketplaceListing{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Listing", id)
	}
	return nil
}
