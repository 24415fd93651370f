// Package seed provides helpers to create demo data for the campus database.
// These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"campushub/internal/models"
	"campushub/internal/repository"
	"campushub/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options tune generated data.
type Options struct {
	// SkipBcrypt hashes once with the minimum cost instead of the default cost.
	SkipBcrypt bool
	// MaxDays bounds how far back post timestamps are spread.
	MaxDays int
	// RandSeed makes output reproducible when non-zero.
	RandSeed int64
}

var (
	campusTags = []string{
		"exams", "hostel", "placements", "fest", "hackathon", "library", "canteen",
		"sports", "cricket", "coding", "internship", "music", "photography", "lostandfound",
	}

	listingCategories = []string{"books", "electronics", "cycles", "furniture", "clothing", "tickets"}

	usernameCleaner = regexp.MustCompile(`[^a-z0-9_.]+`)
)

// Factory builds campus entities and persists them through the repositories,
// so counters and aura stay consistent with what the API would produce.
type Factory struct {
	db   *gorm.DB
	opts Options
	fake *gofakeit.Faker

	profiles    repository.ProfileRepository
	posts       repository.PostRepository
	comments    repository.CommentRepository
	circles     repository.CircleRepository
	polls       repository.PollRepository
	confessions repository.ConfessionRepository
	listings    repository.MarketplaceRepository
	dms         repository.ConversationRepository

	passwordHash string
	seq          int
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 60
	}
	return &Factory{
		db:          db,
		opts:        opts,
		fake:        gofakeit.New(seed),
		profiles:    repository.NewProfileRepository(db),
		posts:       repository.NewPostRepository(db),
		comments:    repository.NewCommentRepository(db),
		circles:     repository.NewCircleRepository(db),
		polls:       repository.NewPollRepository(db),
		confessions: repository.NewConfessionRepository(db),
		listings:    repository.NewMarketplaceRepository(db),
		dms:         repository.NewConversationRepository(db),
	}
}

func (f *Factory) hash() (string, error) {
	if f.passwordHash != "" {
		return f.passwordHash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	f.passwordHash = string(h)
	return f.passwordHash, nil
}

// Username derives a valid, unique handle from a name.
func (f *Factory) Username(first, last string) string {
	f.seq++
	base := usernameCleaner.ReplaceAllString(strings.ToLower(first+"."+last), "")
	for strings.Contains(base, "..") {
		base = strings.ReplaceAll(base, "..", ".")
	}
	base = strings.Trim(base, ".")
	if len(base) < 3 {
		base = "student"
	}
	suffix := fmt.Sprintf("%d", f.seq)
	if limit := 30 - len(suffix); len(base) > limit {
		base = base[:limit]
	}
	return base + suffix
}

// pick returns a random element of items.
func (f *Factory) pick(items []string) string {
	return items[f.fake.Number(0, len(items)-1)]
}

// pastTime returns a time within the configured MaxDays window.
func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.fake.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// CreateProfile persists an onboarded student account.
func (f *Factory) CreateProfile(ctx context.Context, overrides ...func(*models.Profile)) (*models.Profile, error) {
	hash, err := f.hash()
	if err != nil {
		return nil, err
	}
	first, last := f.fake.FirstName(), f.fake.LastName()
	username := f.Username(first, last)
	p := &models.Profile{
		Email:        username + "@campus.edu",
		PasswordHash: hash,
		Username:     &username,
		DisplayName:  first + " " + last,
		AvatarURL:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		Bio:          fmt.Sprintf("%s enthusiast. %s", f.fake.Hobby(), f.fake.Sentence(6)),
		Role:         models.RoleUser,
	}
	for _, override := range overrides {
		override(p)
	}
	if err := f.profiles.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PostContent returns post text carrying one or two campus hashtags.
func (f *Factory) PostContent() string {
	content := f.fake.Sentence(f.fake.Number(6, 16))
	content += " #" + f.pick(campusTags)
	if f.fake.Bool() {
		content += " #" + f.pick(campusTags)
	}
	return content
}

// CreatePost persists a feed post for author.
func (f *Factory) CreatePost(ctx context.Context, author *models.Profile, overrides ...func(*models.Post)) (*models.Post, error) {
	content := f.PostContent()
	post := &models.Post{
		UserID:    author.ID,
		Content:   content,
		Hashtags:  validation.ExtractHashtags(content),
		ImageURLs: []string{},
		CreatedAt: f.pastTime(),
	}
	if f.fake.Number(1, 10) <= 4 {
		post.ImageURLs = []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.fake.UUID())}
	}
	for _, override := range overrides {
		override(post)
	}
	if err := f.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment by author on post.
func (f *Factory) CreateComment(ctx context.Context, author *models.Profile, post *models.Post, parentID *uint) (*models.Comment, error) {
	c := &models.Comment{
		PostID:   post.ID,
		UserID:   author.ID,
		ParentID: parentID,
		Content:  f.fake.Sentence(f.fake.Number(4, 12)),
	}
	if err := f.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GiveAura records user's aura on post and reports whether it was new.
func (f *Factory) GiveAura(ctx context.Context, user *models.Profile, post *models.Post) (bool, error) {
	res, err := f.posts.SetAura(ctx, post.ID, user.ID, true)
	return res.Changed, err
}

// CreateCircle persists a circle owned by owner, who becomes its admin.
func (f *Factory) CreateCircle(ctx context.Context, owner *models.Profile, name string, private bool) (*models.Circle, error) {
	slug := f.circleSlug(name)
	c := &models.Circle{
		Name:        name,
		Slug:        slug,
		Description: f.fake.Sentence(10),
		AvatarURL:   fmt.Sprintf("https://api.dicebear.com/7.x/shapes/svg?seed=%s", slug),
		IsPrivate:   private,
		CreatedBy:   owner.ID,
	}
	if err := f.circles.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// circleSlug slugifies name and appends a sequence number, staying within 40 characters.
func (f *Factory) circleSlug(name string) string {
	f.seq++
	suffix := fmt.Sprintf("-%d", f.seq)
	base := validation.Slugify(name)
	if limit := 40 - len(suffix); len(base) > limit {
		base = strings.TrimRight(base[:limit], "-")
	}
	if base == "" {
		base = "circle"
	}
	return base + suffix
}

// JoinCircle adds user to circle as a plain member.
func (f *Factory) JoinCircle(ctx context.Context, circle *models.Circle, user *models.Profile) error {
	return f.circles.AddMember(ctx, circle.ID, user.ID, models.CircleRoleMember)
}

// CreateCirclePost persists a post inside a circle.
func (f *Factory) CreateCirclePost(ctx context.Context, circle *models.Circle, author *models.Profile) (*models.CirclePost, error) {
	p := &models.CirclePost{
		CircleID:  circle.ID,
		UserID:    author.ID,
		Content:   f.fake.Sentence(f.fake.Number(6, 14)),
		ImageURLs: []string{},
	}
	if err := f.circles.CreatePost(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePoll persists a poll with two to four options.
func (f *Factory) CreatePoll(ctx context.Context, creator *models.Profile) (*models.Poll, error) {
	n := f.fake.Number(2, 4)
	options := make([]models.PollOption, 0, n)
	seen := make(map[string]struct{}, n)
	for len(options) < n {
		text := f.fake.Noun()
		if _, ok := seen[text]; ok {
			text = fmt.Sprintf("%s %d", text, len(options)+1)
		}
		seen[text] = struct{}{}
		options = append(options, models.PollOption{Text: text})
	}
	expires := time.Now().Add(time.Duration(f.fake.Number(1, 7)) * 24 * time.Hour)
	poll := &models.Poll{
		CreatorID: creator.ID,
		Question:  strings.TrimSuffix(f.fake.Question(), "?") + "?",
		Options:   options,
		ExpiresAt: &expires,
	}
	if err := f.polls.Create(ctx, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

// Vote casts voter's vote on a random option of poll.
func (f *Factory) Vote(ctx context.Context, poll *models.Poll, voter *models.Profile) error {
	opt := poll.Options[f.fake.Number(0, len(poll.Options)-1)]
	return f.polls.Vote(ctx, poll.ID, voter.ID, opt.ID)
}

// CreateConfession persists an anonymous confession.
func (f *Factory) CreateConfession(ctx context.Context, author *models.Profile) (*models.Confession, error) {
	c := &models.Confession{
		AuthorID: author.ID,
		Content:  f.fake.Sentence(f.fake.Number(8, 20)),
	}
	if err := f.confessions.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ReactToConfession gives aura and leaves a comment on a confession.
func (f *Factory) ReactToConfession(ctx context.Context, c *models.Confession, user *models.Profile) error {
	if _, err := f.confessions.ToggleAura(ctx, c.ID, user.ID); err != nil {
		return err
	}
	return f.confessions.CreateComment(ctx, &models.ConfessionComment{
		ConfessionID: c.ID,
		AuthorID:     user.ID,
		Content:      f.fake.Sentence(f.fake.Number(3, 10)),
	})
}

// CreateListing persists a marketplace listing for seller.
func (f *Factory) CreateListing(ctx context.Context, seller *models.Profile) (*models.MarketplaceListing, error) {
	l := &models.MarketplaceListing{
		SellerID:    seller.ID,
		Title:       fmt.Sprintf("%s %s", f.fake.Adjective(), f.fake.Noun()),
		Description: f.fake.Sentence(12),
		PriceCents:  int64(f.fake.Price(50, 5000) * 100),
		Category:    f.pick(listingCategories),
		ImageURLs:   []string{fmt.Sprintf("https://picsum.photos/seed/%s/600/600", f.fake.UUID())},
		Status:      models.ListingAvailable,
	}
	if err := f.listings.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateChat opens a conversation between a and b and exchanges a few messages.
func (f *Factory) CreateChat(ctx context.Context, a, b *models.Profile, messages int) (*models.Conversation, error) {
	conv, err := f.dms.GetOrCreate(ctx, a.ID, b.ID)
	if err != nil {
		return nil, err
	}
	for i := 0; i < messages; i++ {
		sender := a
		if i%2 == 1 {
			sender = b
		}
		msg := &models.DirectMessage{
			ConversationID: conv.ID,
			SenderID:       sender.ID,
			Content:        f.fake.Sentence(f.fake.Number(3, 12)),
		}
		if err := f.dms.SendMessage(ctx, msg); err != nil {
			return nil, err
		}
	}
	return conv, nil
}
