package seed

import (
	"context"
	"errors"
	"fmt"

	"campushub/internal/models"
	"campushub/internal/repository"

	"gorm.io/gorm"
)

// BuiltInCircle is a permanent public circle every campus starts with.
type BuiltInCircle struct {
	Name        string
	Slug        string
	Description string
}

// BuiltInCircles defines the permanent campus circles.
var BuiltInCircles = []BuiltInCircle{
	{Name: "Campus Announcements", Slug: "announcements", Description: "Official notices from student affairs."},
	{Name: "Freshers", Slug: "freshers", Description: "Questions and meetups for first years."},
	{Name: "Placements", Slug: "placements", Description: "Interview prep, referrals and offers."},
	{Name: "Hostel Life", Slug: "hostel-life", Description: "Rooms, roommates and late night maggi."},
	{Name: "Lost and Found", Slug: "lost-and-found", Description: "Lost something on campus? Post it here."},
	{Name: "Coding Club", Slug: "coding-club", Description: "Contests, projects and code reviews."},
	{Name: "Sports", Slug: "sports", Description: "Match schedules and pickup games."},
	{Name: "Cultural Committee", Slug: "cultural", Description: "Fests, performances and rehearsals."},
}

// Circles creates any missing built-in circle with ownerID as its admin.
// Existing circles are left untouched, so it is safe to run on every start.
func Circles(ctx context.Context, db *gorm.DB, ownerID uint) (int, error) {
	if ownerID == 0 {
		return 0, errors.New("built-in circles need an owner")
	}
	repo := repository.NewCircleRepository(db)
	created := 0
	for _, item := range BuiltInCircles {
		_, err := repo.GetBySlug(ctx, item.Slug)
		if err == nil {
			continue
		}
		var appErr *models.AppError
		if !errors.As(err, &appErr) || appErr.Code != models.CodeNotFound {
			return created, fmt.Errorf("look up circle %s: %w", item.Slug, err)
		}
		circle := &models.Circle{
			Name:        item.Name,
			Slug:        item.Slug,
			Description: item.Description,
			CreatedBy:   ownerID,
		}
		if err := repo.Create(ctx, circle); err != nil {
			return created, fmt.Errorf("seed built-in circle %s: %w", item.Slug, err)
		}
		created++
	}
	return created, nil
}
