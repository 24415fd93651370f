package service

import (
	"context"

	"campushub/internal/models"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

type SavedService struct {
	saved repository.SavedRepository
}

func NewSavedService(saved repository.SavedRepository) *SavedService {
	return &SavedService{saved: saved}
}

func (s *SavedService) CreateCollection(ctx context.Context, userID uint, name string) (*models.SavedCollection, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	n, err := clean(validation.FieldCollectionName, name)
	if err != nil {
		return nil, err
	}
	c := &models.SavedCollection{UserID: userID, Name: n}
	if err := s.saved.CreateCollection(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SavedService) ListCollections(ctx context.Context, userID uint) ([]models.SavedCollection, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.saved.ListCollections(ctx, userID)
}

// Save bookmarks postID, optionally into one of the user's collections. Saving an
// already saved post moves it.
func (s *SavedService) Save(ctx context.Context, userID, postID uint, collectionID *uint) (*models.SavedPost, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := s.ownCollection(ctx, userID, collectionID); err != nil {
		return nil, err
	}
	return s.saved.Save(ctx, userID, postID, collectionID)
}

func (s *SavedService) Unsave(ctx context.Context, userID, postID uint) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.saved.Unsave(ctx, userID, postID)
}

func (s *SavedService) List(ctx context.Context, userID uint, collectionID *uint, page repository.Page) ([]models.SavedPost, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := s.ownCollection(ctx, userID, collectionID); err != nil {
		return nil, err
	}
	return s.saved.List(ctx, userID, collectionID, page)
}

func (s *SavedService) ownCollection(ctx context.Context, userID uint, collectionID *uint) error {
	if collectionID == nil {
		return nil
	}
	c, err := s.saved.GetCollection(ctx, *collectionID)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return models.NewNotFoundError("Collection", *collectionID)
	}
	return nil
}
