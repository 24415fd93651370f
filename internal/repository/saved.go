package repository

import (
	"context"

	"campushub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SavedRepository stores bookmarks and their collections.
type SavedRepository interface {
	CreateCollection(ctx context.Context, c *models.SavedCollection) error
	GetCollection(ctx context.Context, id uint) (*models.SavedCollection, error)
	ListCollections(ctx context.Context, userID uint) ([]models.SavedCollection, error)
	Save(ctx context.Context, userID, postID uint, collectionID *uint) (*models.SavedPost, error)
	Unsave(ctx context.Context, userID, postID uint) error
	List(ctx context.Context, userID uint, collectionID *uint, page Page) ([]models.SavedPost, error)
}

type savedRepository struct {
	db *gorm.DB
}

// NewSavedRepository returns a new SavedRepository.
func NewSavedRepository(db *gorm.DB) SavedRepository {
	return &savedRepository{db: db}
}

func (r *savedRepository) CreateCollection(ctx context.Context, c *models.SavedCollection) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *savedRepository) GetCollection(ctx context.Context, id uint) (*models.SavedCollection, error) {
	var c models.SavedCollection
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "Collection", id)
	}
	return &c, nil
}

func (r *savedRepository) ListCollections(ctx context.Context, userID uint) ([]models.SavedCollection, error) {
	var rows []models.SavedCollection
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// Save upserts the bookmark; saving again moves it to collectionID.
func (r *savedRepository) Save(ctx context.Context, userID, postID uint, collectionID *uint) (*models.SavedPost, error) {
	if err := r.db.WithContext(ctx).Select("id").First(&models.Post{}, postID).Error; err != nil {
		return nil, notFoundOr(err, "Post", postID)
	}
	row := models.SavedPost{UserID: userID, PostID: postID, CollectionID: collectionID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"collection_id"}),
	}).Create(&row).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var saved models.SavedPost
	if err := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).First(&saved).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &saved, nil
}

func (r *savedRepository) Unsave(ctx context.Context, userID, postID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.SavedPost{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// List returns saved posts newest first. A nil collectionID lists everything.
func (r *savedRepository) List(ctx context.Context, userID uint, collectionID *uint, page Page) ([]models.SavedPost, error) {
	tx := r.db.WithContext(ctx).Preload("Post").Preload("Post.Author").Where("user_id = ?", userID)
	if collectionID != nil {
		tx = tx.Where("collection_id = ?", *collectionID)
	}
	var rows []models.SavedPost
	if err := page.apply(tx.Order("created_at DESC, id DESC")).Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}
