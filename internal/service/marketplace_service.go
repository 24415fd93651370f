package service

import (
	"context"
	"strings"

	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

const (
	maxListingImages  = 6
	maxListingPrice   = 100_000_000
	maxCategoryLength = 40
)

type MarketplaceService struct {
	listings repository.MarketplaceRepository
	guard    *Guard
}

type CreateListingInput struct {
	UserID      uint
	Title       string
	Description string
	PriceCents  int64
	Category    string
	ImageURLs   []string
}

type ListListingsInput struct {
	ViewerID uint
	Category string
	Status   string
	SellerID uint
	Search   string
	Page     repository.Page
}

func NewMarketplaceService(listings repository.MarketplaceRepository, guard *Guard) *MarketplaceService {
	return &MarketplaceService{listings: listings, guard: guard}
}

func (s *MarketplaceService) CreateListing(ctx context.Context, in CreateListingInput) (*models.MarketplaceListing, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionListing, in.UserID); err != nil {
		return nil, err
	}
	title, err := clean(validation.FieldListingTitle, in.Title)
	if err != nil {
		return nil, err
	}
	description, err := clean(validation.FieldListingBody, in.Description)
	if err != nil {
		return nil, err
	}
	if in.PriceCents < 0 || in.PriceCents > maxListingPrice {
		return nil, models.NewValidationError("price_cents is out of range")
	}
	category, err := normalizeCategory(in.Category)
	if err != nil {
		return nil, err
	}
	images, err := cleanMediaURLs(in.ImageURLs, maxListingImages)
	if err != nil {
		return nil, err
	}

	listing := &models.MarketplaceListing{
		SellerID:    in.UserID,
		Title:       title,
		Description: description,
		PriceCents:  in.PriceCents,
		Category:    category,
		ImageURLs:   images,
		Status:      models.ListingAvailable,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *MarketplaceService) ListListings(ctx context.Context, in ListListingsInput) ([]models.MarketplaceListing, error) {
	q := repository.ListingQuery{SellerID: in.SellerID, Page: in.Page}
	if in.Category != "" {
		category, err := normalizeCategory(in.Category)
		if err != nil {
			return nil, err
		}
		q.Category = category
	}
	switch status := models.ListingStatus(strings.ToLower(in.Status)); status {
	case "":
	case models.ListingAvailable, models.ListingSold:
		q.Status = status
	default:
		return nil, models.NewValidationError("status must be available or sold")
	}
	if in.Search != "" {
		if err := s.guard.Allow(ratelimit.ActionSearch, in.ViewerID); err != nil {
			return nil, err
		}
		q.Search = validation.SanitizeSearch(in.Search)
	}
	return s.listings.List(ctx, q)
}

func (s *MarketplaceService) GetListing(ctx context.Context, id uint) (*models.MarketplaceListing, error) {
	return s.listings.GetByID(ctx, id)
}

func (s *MarketplaceService) MarkSold(ctx context.Context, userID, listingID uint) (*models.MarketplaceListing, error) {
	listing, err := s.owned(ctx, userID, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status == models.ListingSold {
		return listing, nil
	}
	if err := s.listings.SetStatus(ctx, listingID, models.ListingSold); err != nil {
		return nil, err
	}
	listing.Status = models.ListingSold
	return listing, nil
}

func (s *MarketplaceService) DeleteListing(ctx context.Context, userID, listingID uint) error {
	if _, err := s.owned(ctx, userID, listingID); err != nil {
		return err
	}
	return s.listings.Delete(ctx, listingID)
}

func (s *MarketplaceService) owned(ctx context.Context, userID, listingID uint) (*models.MarketplaceListing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.OwnerOrAdmin(ctx, listing.SellerID, userID, "You can only manage your own listings"); err != nil {
		return nil, err
	}
	return listing, nil
}

func normalizeCategory(raw string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(raw))
	if len(c) > maxCategoryLength {
		return "", models.NewValidationError("category is too long")
	}
	for _, r := range c {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return "", models.NewValidationError("category may contain only letters, numbers, - and _")
		}
	}
	return c, nil
}
