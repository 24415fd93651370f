package repository

import (
	"context"
	"errors"

	"campushub/internal/cache"
	"campushub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedQuery selects a page of the main feed.
type FeedQuery struct {
	ViewerID uint
	Hashtag  string
	UserID   uint
	Search   string
	Page     Page
}

// AuraResult is the state of a post or confession after an aura change.
type AuraResult struct {
	Liked     bool
	AuraCount int
	AuthorID  uint
	Changed   bool
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error)
	List(ctx context.Context, q FeedQuery) ([]models.Post, error)
	Delete(ctx context.Context, id uint) error
	SetAura(ctx context.Context, postID, userID uint, liked bool) (AuraResult, error)
	ToggleAura(ctx context.Context, postID, userID uint) (AuraResult, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Preload("Author").First(post, post.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	posts := []models.Post{post}
	if err := markLikedPosts(ctx, r.db, viewerID, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// List returns posts newest first. Hashtag matches against the stored JSON array.
func (r *postRepository) List(ctx context.Context, q FeedQuery) ([]models.Post, error) {
	tx := r.db.WithContext(ctx).Model(&models.Post{}).Preload("Author")
	if q.Hashtag != "" {
		tx = tx.Where("hashtags LIKE ?"+likeEscape, `%"`+wildcardEscaper.Replace(q.Hashtag)+`"%`)
	}
	if q.UserID != 0 {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.Search != "" {
		tx = tx.Where("LOWER(content) LIKE ?"+likeEscape, containsPattern(q.Search))
	}

	var posts []models.Post
	if err := q.Page.apply(tx.Order("created_at DESC, id DESC")).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := markLikedPosts(ctx, r.db, q.ViewerID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func markLikedPosts(ctx context.Context, db *gorm.DB, viewerID uint, posts []models.Post) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	var liked []uint
	if err := db.WithContext(ctx).Model(&models.PostAura{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &liked).Error; err != nil {
		return models.NewInternalError(err)
	}
	set := make(map[uint]struct{}, len(liked))
	for _, id := range liked {
		set[id] = struct{}{}
	}
	for i := range posts {
		_, posts[i].Liked = set[posts[i].ID]
	}
	return nil
}

// Delete removes the post with its auras, comments and saves.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "user_id", "aura_count").First(&post, id).Error; err != nil {
			return notFoundOr(err, "Post", id)
		}
		for _, m := range []any{&models.PostAura{}, &models.Comment{}, &models.SavedPost{}} {
			if err := tx.Where("post_id = ?", id).Delete(m).Error; err != nil {
				return models.NewInternalError(err)
			}
		}
		if err := tx.Model(&models.DirectMessage{}).Where("shared_post_id = ?", id).
			Update("shared_post_id", nil).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Delete(&models.Post{}, id).Error; err != nil {
			return models.NewInternalError(err)
		}
		if post.AuraCount > 0 {
			if err := tx.Model(&models.Profile{}).Where("id = ?", post.UserID).
				Update("aura", gorm.Expr("aura - ?", post.AuraCount)).Error; err != nil {
				return models.NewInternalError(err)
			}
		}
		return nil
	})
}

func (r *postRepository) ToggleAura(ctx context.Context, postID, userID uint) (AuraResult, error) {
	return r.changeAura(ctx, postID, userID, nil)
}

func (r *postRepository) SetAura(ctx context.Context, postID, userID uint, liked bool) (AuraResult, error) {
	return r.changeAura(ctx, postID, userID, &liked)
}

// changeAura inserts or removes the (post, user) aura row and moves the post counter and
// the author's aura with it in one transaction. want nil flips the current state.
func (r *postRepository) changeAura(ctx context.Context, postID, userID uint, want *bool) (AuraResult, error) {
	var res AuraResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "user_id").First(&post, postID).Error; err != nil {
			return notFoundOr(err, "Post", postID)
		}
		res.AuthorID = post.UserID

		var existing models.PostAura
		err := tx.Where("post_id = ? AND user_id = ?", postID, userID).First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewInternalError(err)
		}
		has := err == nil
		target := !has
		if want != nil {
			target = *want
		}

		delta := 0
		switch {
		case target && !has:
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.PostAura{PostID: postID, UserID: userID})
			if ins.Error != nil {
				return models.NewInternalError(ins.Error)
			}
			if ins.RowsAffected > 0 {
				delta = 1
			}
		case !target && has:
			del := tx.Delete(&existing)
			if del.Error != nil {
				return models.NewInternalError(del.Error)
			}
			if del.RowsAffected > 0 {
				delta = -1
			}
		}

		if delta != 0 {
			if err := tx.Model(&models.Post{}).Where("id = ?", postID).
				Update("aura_count", gorm.Expr("aura_count + ?", delta)).Error; err != nil {
				return models.NewInternalError(err)
			}
			if err := tx.Model(&models.Profile{}).Where("id = ?", post.UserID).
				Update("aura", gorm.Expr("aura + ?", delta)).Error; err != nil {
				return models.NewInternalError(err)
			}
		}

		var count int
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Select("aura_count").Scan(&count).Error; err != nil {
			return models.NewInternalError(err)
		}
		res.Liked = target
		res.AuraCount = count
		res.Changed = delta != 0
		return nil
	})
	if err == nil && res.Changed {
		cache.Invalidate(ctx, cache.ProfileKey(res.AuthorID))
	}
	return res, err
}
