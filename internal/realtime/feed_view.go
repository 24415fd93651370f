package realtime

import (
	"context"
	"fmt"
	"slices"

	"campushub/internal/models"
)

// ViewFeed is the Kind of FeedView.
const ViewFeed = "feed"

// FeedLoader returns the first page of the feed as seen by viewerID, newest first.
// hashtag narrows the page when non-empty.
type FeedLoader func(ctx context.Context, viewerID uint, hashtag string) ([]models.Post, error)

type provisional struct {
	token     uint64
	liked     bool
	auraCount int
}

// FeedView holds a page of posts with optimistic aura toggles layered on top.
type FeedView struct {
	viewerID uint
	hashtag  string
	load     FeedLoader

	posts   []models.Post
	pending map[uint]provisional
	nextTok uint64
}

func NewFeedView(viewerID uint, hashtag string, load FeedLoader) *FeedView {
	return &FeedView{viewerID: viewerID, hashtag: hashtag, load: load, pending: make(map[uint]provisional)}
}

func (v *FeedView) Kind() string { return ViewFeed }

func (v *FeedView) Filters() []Filter {
	return []Filter{
		{Table: TablePosts},
		FilterID(TablePostAuras, "user_id", v.viewerID),
	}
}

// Reload replaces the page and discards every provisional value.
func (v *FeedView) Reload(ctx context.Context) error {
	if v.load == nil {
		return fmt.Errorf("feed: no loader")
	}
	posts, err := v.load(ctx, v.viewerID, v.hashtag)
	if err != nil {
		return fmt.Errorf("reload feed: %w", err)
	}
	v.posts = posts
	clear(v.pending)
	return nil
}

// Posts returns the current page.
func (v *FeedView) Posts() []models.Post {
	return slices.Clone(v.posts)
}

// Post returns the post with id, if it is on the page.
func (v *FeedView) Post(id uint) (models.Post, bool) {
	i := v.index(id)
	if i < 0 {
		return models.Post{}, false
	}
	return v.posts[i], true
}

// Pending reports whether postID has an unconfirmed optimistic toggle.
func (v *FeedView) Pending(postID uint) bool {
	_, ok := v.pending[postID]
	return ok
}

func (v *FeedView) Snapshot() any {
	return map[string]any{"hashtag": v.hashtag, "posts": v.Posts()}
}

func (v *FeedView) index(id uint) int {
	return indexOf(v.posts, func(p models.Post) uint { return p.ID }, id)
}

// ApplyOptimistic sets postID's liked flag and count to their expected values before
// the write is confirmed. The returned rollback restores the previous values unless
// an authoritative event or reload has replaced them meanwhile. ok is false when the
// post is not on the page or already in the requested state.
func (v *FeedView) ApplyOptimistic(postID uint, liked bool) (rollback func(), ok bool) {
	i := v.index(postID)
	if i < 0 || v.posts[i].Liked == liked {
		return func() {}, false
	}

	v.nextTok++
	tok := v.nextTok
	prev, stacked := v.pending[postID]
	if !stacked {
		prev = provisional{liked: v.posts[i].Liked, auraCount: v.posts[i].AuraCount}
	}
	v.pending[postID] = provisional{token: tok, liked: prev.liked, auraCount: prev.auraCount}

	v.posts[i].Liked = liked
	if liked {
		v.posts[i].AuraCount++
	} else if v.posts[i].AuraCount > 0 {
		v.posts[i].AuraCount--
	}

	return func() {
		p, ok := v.pending[postID]
		if !ok || p.token != tok {
			return
		}
		delete(v.pending, postID)
		if j := v.index(postID); j >= 0 {
			v.posts[j].Liked = p.liked
			v.posts[j].AuraCount = p.auraCount
		}
	}, true
}

func (v *FeedView) Apply(ev ChangeEvent) Decision {
	switch ev.Table {
	case TablePosts:
		return v.applyPost(ev)
	case TablePostAuras:
		return v.applyAura(ev)
	default:
		return Ignored
	}
}

func (v *FeedView) matches(p models.Post) bool {
	return v.hashtag == "" || slices.Contains(p.Hashtags, v.hashtag)
}

func (v *FeedView) applyPost(ev ChangeEvent) Decision {
	var p models.Post
	if err := ev.Decode(&p); err != nil || p.ID == 0 {
		return Refetch
	}
	i := v.index(p.ID)

	switch ev.Type {
	case Insert:
		if i >= 0 || !v.matches(p) {
			return Ignored
		}
		p.Liked = false
		v.posts = slices.Insert(v.posts, 0, p)
		return Patched
	case Update:
		if i < 0 {
			return Ignored
		}
		// The row carries no per-viewer state; keep the last confirmed liked flag.
		liked := v.posts[i].Liked
		if prov, ok := v.pending[p.ID]; ok {
			liked = prov.liked
			delete(v.pending, p.ID)
		}
		if p.Author == nil {
			p.Author = v.posts[i].Author
		}
		p.Liked = liked
		v.posts[i] = p
		return Patched
	case Delete:
		if i < 0 {
			return Ignored
		}
		v.posts = slices.Delete(v.posts, i, i+1)
		delete(v.pending, p.ID)
		return Patched
	default:
		return Refetch
	}
}

func (v *FeedView) applyAura(ev ChangeEvent) Decision {
	var a models.PostAura
	if err := ev.Decode(&a); err != nil || a.PostID == 0 {
		return Refetch
	}
	if a.UserID != v.viewerID {
		return Ignored
	}
	i := v.index(a.PostID)
	if i < 0 {
		return Ignored
	}
	switch ev.Type {
	case Insert:
		v.posts[i].Liked = true
	case Delete:
		v.posts[i].Liked = false
	default:
		return Ignored
	}
	delete(v.pending, a.PostID)
	return Patched
}
