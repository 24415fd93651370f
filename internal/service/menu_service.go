package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"campushub/internal/media"
	"campushub/internal/menuai"
	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/repository"
)

const (
	maxDishesPerMeal = 30
	maxDishLength    = 100
)

type MenuService struct {
	menus    repository.MenuRepository
	pipeline *media.Pipeline
	parser   menuai.Parser
	guard    *Guard
	now      func() time.Time
}

// MenuUploadResult is the stored menu plus why the AI parse fell back, if it did.
type MenuUploadResult struct {
	Menu           *models.MessMenu `json:"menu"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
}

type UpdateMenuInput struct {
	UserID    uint
	Date      string
	Breakfast []string
	Lunch     []string
	Snacks    []string
	Dinner    []string
}

func NewMenuService(menus repository.MenuRepository, pipeline *media.Pipeline, parser menuai.Parser, guard *Guard) *MenuService {
	return &MenuService{menus: menus, pipeline: pipeline, parser: parser, guard: guard, now: time.Now}
}

// GetMenu returns the stored menu for date, or the static menu when none is stored.
// An empty date means today.
func (s *MenuService) GetMenu(ctx context.Context, date string) (*models.MessMenu, error) {
	day, err := s.menuDate(date)
	if err != nil {
		return nil, err
	}
	menu, err := s.menus.GetByDate(ctx, day)
	if err != nil {
		return nil, err
	}
	if menu != nil {
		return menu, nil
	}
	fb := menuai.Fallback()
	return &models.MessMenu{
		Date:      day,
		Breakfast: fb.Breakfast,
		Lunch:     fb.Lunch,
		Snacks:    fb.Snacks,
		Dinner:    fb.Dinner,
		Source:    models.MenuSourceFallback,
	}, nil
}

// UploadMenu stores the photo, asks the AI parser for the four meals and saves the
// result for date. A failed parse still stores the static menu, marked as fallback.
func (s *MenuService) UploadMenu(ctx context.Context, userID uint, date string, file media.File) (*MenuUploadResult, error) {
	if err := s.guard.RequireAdmin(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionUpload, userID); err != nil {
		return nil, err
	}
	day, err := s.menuDate(date)
	if err != nil {
		return nil, err
	}
	uploaded, err := s.pipeline.Upload(ctx, file, media.BucketMenus, userID)
	if err != nil {
		return nil, err
	}

	parsed := s.parser.ParseMenu(ctx, file.Content, file.ContentType)
	menu := &models.MessMenu{
		Date:      day,
		Breakfast: cleanDishes(parsed.Menu.Breakfast),
		Lunch:     cleanDishes(parsed.Menu.Lunch),
		Snacks:    cleanDishes(parsed.Menu.Snacks),
		Dinner:    cleanDishes(parsed.Menu.Dinner),
		Source:    parsed.Source,
		ImageURL:  uploaded.URL,
		UpdatedBy: &userID,
	}
	if err := s.menus.Upsert(ctx, menu); err != nil {
		return nil, err
	}
	return &MenuUploadResult{Menu: menu, FallbackReason: parsed.Reason}, nil
}

// UpdateMenu replaces a day's meals by hand.
func (s *MenuService) UpdateMenu(ctx context.Context, in UpdateMenuInput) (*models.MessMenu, error) {
	if err := s.guard.RequireAdmin(ctx, in.UserID); err != nil {
		return nil, err
	}
	day, err := s.menuDate(in.Date)
	if err != nil {
		return nil, err
	}
	meals := [][]string{in.Breakfast, in.Lunch, in.Snacks, in.Dinner}
	for _, m := range meals {
		if len(m) > maxDishesPerMeal {
			return nil, models.NewValidationError("Too many dishes in one meal")
		}
		for _, d := range m {
			if utf8.RuneCountInString(strings.TrimSpace(d)) > maxDishLength {
				return nil, models.NewValidationError("Dish names must be at most 100 characters")
			}
		}
	}

	menu := &models.MessMenu{
		Date:      day,
		Breakfast: cleanDishes(in.Breakfast),
		Lunch:     cleanDishes(in.Lunch),
		Snacks:    cleanDishes(in.Snacks),
		Dinner:    cleanDishes(in.Dinner),
		Source:    models.MenuSourceManual,
		UpdatedBy: &in.UserID,
	}
	if err := s.menus.Upsert(ctx, menu); err != nil {
		return nil, err
	}
	return menu, nil
}

func (s *MenuService) menuDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now().Format(models.MenuDateLayout), nil
	}
	t, err := time.Parse(models.MenuDateLayout, raw)
	if err != nil {
		return "", models.NewValidationError("date must be YYYY-MM-DD")
	}
	return t.Format(models.MenuDateLayout), nil
}

// cleanDishes trims names, drops blanks and caps the list.
func cleanDishes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.Join(strings.Fields(d), " ")
		if d == "" {
			continue
		}
		if utf8.RuneCountInString(d) > maxDishLength {
			d = string([]rune(d)[:maxDishLength])
		}
		out = append(out, d)
		if len(out) == maxDishesPerMeal {
			break
		}
	}
	return out
}
