package service

import (
	"context"
	"log/slog"
	"strings"

	"campushub/internal/middleware"
	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/realtime"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

const maxPostImages = 10

type PostService struct {
	postRepo repository.PostRepository
	notifier *NotificationService
	feed     realtime.Feed
	guard    *Guard
}

type CreatePostInput struct {
	UserID    uint
	Content   string
	ImageURLs []string
	VideoURL  string
}

type ListFeedInput struct {
	ViewerID uint
	Hashtag  string
	UserID   uint
	Page     repository.Page
}

func NewPostService(
	postRepo repository.PostRepository,
	notifier *NotificationService,
	feed realtime.Feed,
	guard *Guard,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		notifier: notifier,
		feed:     feed,
		guard:    guard,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionPost, in.UserID); err != nil {
		return nil, err
	}
	content, err := clean(validation.FieldPost, in.Content)
	if err != nil {
		return nil, err
	}
	images, err := cleanMediaURLs(in.ImageURLs, maxPostImages)
	if err != nil {
		return nil, err
	}
	video, err := cleanMediaURL(in.VideoURL)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:    in.UserID,
		Content:   content,
		ImageURLs: images,
		VideoURL:  video,
		Hashtags:  validation.ExtractHashtags(content),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	realtime.Emit(ctx, s.feed, realtime.TablePosts, realtime.Insert, post)
	return post, nil
}

// ListFeed returns one page of posts, newest first.
func (s *PostService) ListFeed(ctx context.Context, in ListFeedInput) ([]models.Post, error) {
	return s.postRepo.List(ctx, repository.FeedQuery{
		ViewerID: in.ViewerID,
		Hashtag:  normalizeHashtag(in.Hashtag),
		UserID:   in.UserID,
		Page:     in.Page,
	})
}

func (s *PostService) SearchPosts(ctx context.Context, viewerID uint, query string, page repository.Page) ([]models.Post, error) {
	if err := s.guard.Allow(ratelimit.ActionSearch, viewerID); err != nil {
		return nil, err
	}
	term := validation.SanitizeSearch(query)
	if term == "" {
		return []models.Post{}, nil
	}
	return s.postRepo.List(ctx, repository.FeedQuery{ViewerID: viewerID, Search: term, Page: page})
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, viewerID)
}

func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		return err
	}
	if err := s.guard.OwnerOrAdmin(ctx, post.UserID, userID, "You can only delete your own posts"); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	realtime.Emit(ctx, s.feed, realtime.TablePosts, realtime.Delete, post)
	return nil
}

// ToggleAura likes or unlikes the post for userID.
func (s *PostService) ToggleAura(ctx context.Context, userID, postID uint) (repository.AuraResult, error) {
	if err := requireUser(userID); err != nil {
		return repository.AuraResult{}, err
	}
	if err := s.guard.Allow(ratelimit.ActionLike, userID); err != nil {
		return repository.AuraResult{}, err
	}
	res, err := s.postRepo.ToggleAura(ctx, postID, userID)
	if err != nil {
		return res, err
	}
	s.afterAura(ctx, userID, postID, res)
	return res, nil
}

// SetAura moves the user's like to liked. Repeating a call is a no-op.
func (s *PostService) SetAura(ctx context.Context, userID, postID uint, liked bool) (repository.AuraResult, error) {
	if err := requireUser(userID); err != nil {
		return repository.AuraResult{}, err
	}
	if err := s.guard.Allow(ratelimit.ActionLike, userID); err != nil {
		return repository.AuraResult{}, err
	}
	res, err := s.postRepo.SetAura(ctx, postID, userID, liked)
	if err != nil {
		return res, err
	}
	s.afterAura(ctx, userID, postID, res)
	return res, nil
}

func (s *PostService) afterAura(ctx context.Context, userID, postID uint, res repository.AuraResult) {
	if !res.Changed {
		return
	}
	typ := realtime.Delete
	if res.Liked {
		typ = realtime.Insert
	}
	realtime.Emit(ctx, s.feed, realtime.TablePostAuras, typ,
		models.PostAura{PostID: postID, UserID: userID},
		realtime.ScopeID("user_id", userID), realtime.ScopeID("post_id", postID))

	if post, err := s.postRepo.GetByID(ctx, postID, 0); err == nil {
		realtime.Emit(ctx, s.feed, realtime.TablePosts, realtime.Update, post)
	} else {
		middleware.Logger.WarnContext(ctx, "failed to reload post after aura change",
			slog.Uint64("post_id", uint64(postID)),
			slog.String("error", err.Error()),
		)
	}

	if res.Liked && res.AuthorID != userID {
		actor := userID
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: res.AuthorID,
			ActorID:     &actor,
			Type:        models.NotificationPostAura,
			EntityID:    postID,
			Message:     "Someone gave your post aura",
		})
	}
}

func normalizeHashtag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
