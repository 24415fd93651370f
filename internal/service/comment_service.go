package service

import (
	"context"

	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/realtime"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

// liveCommentLimit bounds the comments a live comment view loads.
const liveCommentLimit = 100

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	notifier    *NotificationService
	feed        realtime.Feed
	guard       *Guard
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	ParentID *uint
	Content  string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	notifier *NotificationService,
	feed realtime.Feed,
	guard *Guard,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		notifier:    notifier,
		feed:        feed,
		guard:       guard,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionComment, in.UserID); err != nil {
		return nil, err
	}
	content, err := clean(validation.FieldComment, in.Content)
	if err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:   in.PostID,
		UserID:   in.UserID,
		ParentID: in.ParentID,
		Content:  content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	realtime.Emit(ctx, s.feed, realtime.TableComments, realtime.Insert, comment,
		realtime.ScopeID("post_id", comment.PostID))

	if post.UserID != in.UserID {
		actor := in.UserID
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: post.UserID,
			ActorID:     &actor,
			Type:        models.NotificationPostComment,
			EntityID:    post.ID,
			Message:     "New comment on your post",
		})
	}
	return comment, nil
}

// ListComments returns a post's comments oldest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint, page repository.Page) ([]models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID, page)
}

// LoadLive is the loader of a live comment view.
func (s *CommentService) LoadLive(ctx context.Context, postID uint) ([]models.Comment, error) {
	return s.ListComments(ctx, postID, repository.Page{Limit: liveCommentLimit})
}

// DeleteComment removes the comment and its direct replies. The comment author, the
// post author and site admins may delete.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		post, err := s.postRepo.GetByID(ctx, comment.PostID, 0)
		if err != nil {
			return err
		}
		if err := s.guard.OwnerOrAdmin(ctx, post.UserID, userID, "You can only delete your own comments"); err != nil {
			return err
		}
	}

	removed, err := s.commentRepo.Delete(ctx, commentID)
	if err != nil {
		return err
	}
	for _, id := range removed {
		realtime.Emit(ctx, s.feed, realtime.TableComments, realtime.Delete,
			models.Comment{ID: id, PostID: comment.PostID},
			realtime.ScopeID("post_id", comment.PostID))
	}
	return nil
}
