package realtime

import (
	"context"
	"fmt"
	"slices"

	"campushub/internal/models"
)

// ViewComments is the Kind of CommentListView.
const ViewComments = "comments"

// CommentLoader returns the comments of a post, oldest first.
type CommentLoader func(ctx context.Context, postID uint) ([]models.Comment, error)

// CommentListView holds the comments of one post.
type CommentListView struct {
	postID   uint
	load     CommentLoader
	comments []models.Comment
}

func NewCommentListView(postID uint, load CommentLoader) *CommentListView {
	return &CommentListView{postID: postID, load: load}
}

func (v *CommentListView) Kind() string { return ViewComments }

func (v *CommentListView) Filters() []Filter {
	return []Filter{FilterID(TableComments, "post_id", v.postID)}
}

func (v *CommentListView) Reload(ctx context.Context) error {
	if v.load == nil {
		return fmt.Errorf("comments of post %d: no loader", v.postID)
	}
	comments, err := v.load(ctx, v.postID)
	if err != nil {
		return fmt.Errorf("reload comments of post %d: %w", v.postID, err)
	}
	v.comments = comments
	return nil
}

// Comments returns the current comments.
func (v *CommentListView) Comments() []models.Comment {
	return slices.Clone(v.comments)
}

func (v *CommentListView) Snapshot() any {
	return map[string]any{"post_id": v.postID, "comments": v.Comments()}
}

func (v *CommentListView) Summary() any {
	return map[string]int{"count": len(v.comments)}
}

func (v *CommentListView) Apply(ev ChangeEvent) Decision {
	if ev.Table != TableComments {
		return Ignored
	}
	var c models.Comment
	if err := ev.Decode(&c); err != nil || c.ID == 0 {
		return Refetch
	}
	if c.PostID != v.postID {
		return Ignored
	}
	i := indexOf(v.comments, func(c models.Comment) uint { return c.ID }, c.ID)

	switch ev.Type {
	case Insert:
		if i >= 0 {
			return Ignored
		}
		v.comments = append(v.comments, c)
		return Patched
	case Update:
		if i < 0 {
			return Refetch
		}
		v.comments[i] = c
		return Patched
	case Delete:
		if i < 0 {
			return Ignored
		}
		v.comments = slices.Delete(v.comments, i, i+1)
		return Patched
	default:
		return Refetch
	}
}
