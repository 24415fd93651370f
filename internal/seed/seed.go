package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"campushub/internal/database"
	"campushub/internal/menuai"
	"campushub/internal/models"
	"campushub/internal/repository"

	"gorm.io/gorm"
)

// Counts sizes a seeding run. Zero values fall back to defaults.
type Counts struct {
	Users       int
	Posts       int
	Circles     int
	Polls       int
	Confessions int
	Listings    int
	Chats       int
}

func (c Counts) withDefaults() Counts {
	if c.Users <= 0 {
		c.Users = 50
	}
	if c.Posts <= 0 {
		c.Posts = 200
	}
	if c.Circles <= 0 {
		c.Circles = 6
	}
	if c.Polls <= 0 {
		c.Polls = 10
	}
	if c.Confessions <= 0 {
		c.Confessions = 20
	}
	if c.Listings <= 0 {
		c.Listings = 15
	}
	if c.Chats <= 0 {
		c.Chats = 10
	}
	return c
}

// Summary reports what a run created.
type Summary struct {
	Users        int
	Posts        int
	Comments     int
	Auras        int
	Circles      int
	Polls        int
	Votes        int
	Confessions  int
	Listings     int
	Chats        int
	MenuSeeded   bool
	BuiltInAdded int
}

// Seeder populates a database with a believable campus.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts)}
}

// Factory exposes the underlying factory for ad hoc records.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// ClearAll deletes every row of every application table, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	log.Println("🗑️  Clearing existing data...")
	all := database.PersistentModels()
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(all) - 1; i >= 0; i-- {
		if err := tx.Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", all[i], err)
		}
	}
	return nil
}

// Run seeds profiles first, then the content hanging off them.
func (s *Seeder) Run(ctx context.Context, counts Counts) (*Summary, error) {
	counts = counts.withDefaults()
	f := s.factory
	sum := &Summary{}
	log.Printf("🌱 Seeding %d users and %d posts...", counts.Users, counts.Posts)

	users := make([]*models.Profile, 0, counts.Users)
	for i := 0; i < counts.Users; i++ {
		p, err := f.CreateProfile(ctx)
		if err != nil {
			return sum, fmt.Errorf("create profile: %w", err)
		}
		users = append(users, p)
	}
	sum.Users = len(users)
	log.Printf("✓ %d profiles created", sum.Users)
	if len(users) < 2 {
		return sum, nil
	}

	added, err := Circles(ctx, s.db, users[0].ID)
	if err != nil {
		return sum, err
	}
	sum.BuiltInAdded = added

	if err := s.seedPosts(ctx, users, counts.Posts, sum); err != nil {
		return sum, err
	}
	log.Printf("✓ %d posts, %d comments, %d aura", sum.Posts, sum.Comments, sum.Auras)

	if err := s.seedCircles(ctx, users, counts.Circles, sum); err != nil {
		return sum, err
	}
	log.Printf("✓ %d circles created", sum.Circles)

	if err := s.seedBoards(ctx, users, counts, sum); err != nil {
		return sum, err
	}
	log.Printf("✓ %d polls (%d votes), %d confessions, %d listings", sum.Polls, sum.Votes, sum.Confessions, sum.Listings)

	for i := 0; i < counts.Chats; i++ {
		a, b := f.pair(users)
		if _, err := f.CreateChat(ctx, a, b, f.fake.Number(2, 6)); err != nil {
			return sum, fmt.Errorf("create chat: %w", err)
		}
		sum.Chats++
	}

	if err := s.seedMenu(ctx, time.Now()); err != nil {
		return sum, err
	}
	sum.MenuSeeded = true

	log.Println("🎉 Database seeding completed successfully!")
	return sum, nil
}

func (s *Seeder) seedPosts(ctx context.Context, users []*models.Profile, n int, sum *Summary) error {
	f := s.factory
	for i := 0; i < n; i++ {
		author := users[f.fake.Number(0, len(users)-1)]
		post, err := f.CreatePost(ctx, author)
		if err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		sum.Posts++

		for j, likes := 0, f.fake.Number(0, min(len(users), 8)); j < likes; j++ {
			changed, err := f.GiveAura(ctx, users[f.fake.Number(0, len(users)-1)], post)
			if err != nil {
				return fmt.Errorf("give aura: %w", err)
			}
			if changed {
				sum.Auras++
			}
		}

		var last *uint
		for j, comments := 0, f.fake.Number(0, 3); j < comments; j++ {
			c, err := f.CreateComment(ctx, users[f.fake.Number(0, len(users)-1)], post, last)
			if err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
			if f.fake.Bool() {
				last = &c.ID
			}
		}
	}
	return nil
}

func (s *Seeder) seedCircles(ctx context.Context, users []*models.Profile, n int, sum *Summary) error {
	f := s.factory
	for i := 0; i < n; i++ {
		owner := users[f.fake.Number(0, len(users)-1)]
		name := fmt.Sprintf("%s %s %d", f.fake.Adjective(), f.fake.Hobby(), i+1)
		circle, err := f.CreateCircle(ctx, owner, name, i%3 == 2)
		if err != nil {
			return fmt.Errorf("create circle: %w", err)
		}
		sum.Circles++

		for _, u := range users {
			if u.ID == owner.ID || !f.fake.Bool() {
				continue
			}
			if err := f.JoinCircle(ctx, circle, u); err != nil {
				return fmt.Errorf("join circle: %w", err)
			}
			if f.fake.Number(1, 4) == 1 {
				if _, err := f.CreateCirclePost(ctx, circle, u); err != nil {
					return fmt.Errorf("create circle post: %w", err)
				}
			}
		}
	}
	return nil
}

func (s *Seeder) seedBoards(ctx context.Context, users []*models.Profile, counts Counts, sum *Summary) error {
	f := s.factory
	for i := 0; i < counts.Polls; i++ {
		poll, err := f.CreatePoll(ctx, users[f.fake.Number(0, len(users)-1)])
		if err != nil {
			return fmt.Errorf("create poll: %w", err)
		}
		sum.Polls++
		for _, u := range users {
			if f.fake.Number(1, 3) != 1 {
				continue
			}
			if err := f.Vote(ctx, poll, u); err != nil {
				return fmt.Errorf("vote: %w", err)
			}
			sum.Votes++
		}
	}

	for i := 0; i < counts.Confessions; i++ {
		c, err := f.CreateConfession(ctx, users[f.fake.Number(0, len(users)-1)])
		if err != nil {
			return fmt.Errorf("create confession: %w", err)
		}
		sum.Confessions++
		if f.fake.Bool() {
			if err := f.ReactToConfession(ctx, c, users[f.fake.Number(0, len(users)-1)]); err != nil {
				return fmt.Errorf("react to confession: %w", err)
			}
		}
	}

	for i := 0; i < counts.Listings; i++ {
		if _, err := f.CreateListing(ctx, users[f.fake.Number(0, len(users)-1)]); err != nil {
			return fmt.Errorf("create listing: %w", err)
		}
		sum.Listings++
	}
	return nil
}

// seedMenu stores the static menu for the day so the menu page is never empty.
func (s *Seeder) seedMenu(ctx context.Context, day time.Time) error {
	m := menuai.Fallback()
	menu := &models.MessMenu{
		Date:      day.Format(models.MenuDateLayout),
		Breakfast: m.Breakfast,
		Lunch:     m.Lunch,
		Snacks:    m.Snacks,
		Dinner:    m.Dinner,
		Source:    models.MenuSourceFallback,
	}
	if err := repository.NewMenuRepository(s.db).Upsert(ctx, menu); err != nil {
		return fmt.Errorf("seed menu: %w", err)
	}
	return nil
}

// pair returns two distinct users.
func (f *Factory) pair(users []*models.Profile) (*models.Profile, *models.Profile) {
	i := f.fake.Number(0, len(users)-1)
	j := f.fake.Number(0, len(users)-2)
	if j >= i {
		j++
	}
	return users[i], users[j]
}
