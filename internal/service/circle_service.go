package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/realtime"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

const maxCirclePostImages = 4

type CircleService struct {
	circles  repository.CircleRepository
	notifier *NotificationService
	feed     realtime.Feed
	guard    *Guard
}

type CreateCircleInput struct {
	UserID      uint
	Name        string
	Slug        string
	Description string
	AvatarURL   string
	IsPrivate   bool
}

// JoinResult tells the caller whether they joined immediately or are waiting for review.
type JoinResult struct {
	Joined  bool                      `json:"joined"`
	Request *models.CircleJoinRequest `json:"request,omitempty"`
}

type CreateCirclePostInput struct {
	UserID    uint
	CircleID  uint
	Content   string
	ImageURLs []string
}

func NewCircleService(
	circles repository.CircleRepository,
	notifier *NotificationService,
	feed realtime.Feed,
	guard *Guard,
) *CircleService {
	return &CircleService{
		circles:  circles,
		notifier: notifier,
		feed:     feed,
		guard:    guard,
	}
}

// CreateCircle stores the circle; its creator becomes the first admin. An empty
// slug is derived from the name.
func (s *CircleService) CreateCircle(ctx context.Context, in CreateCircleInput) (*models.Circle, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	name, err := clean(validation.FieldCircleName, in.Name)
	if err != nil {
		return nil, err
	}
	description, err := clean(validation.FieldCircleDescription, in.Description)
	if err != nil {
		return nil, err
	}
	avatar, err := cleanMediaURL(in.AvatarURL)
	if err != nil {
		return nil, err
	}
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	if slug == "" {
		slug = validation.Slugify(name)
	}
	if err := validation.ValidateCircleSlug(slug); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	circle := &models.Circle{
		Name:        name,
		Slug:        slug,
		Description: description,
		AvatarURL:   avatar,
		IsPrivate:   in.IsPrivate,
		CreatedBy:   in.UserID,
	}
	if err := s.circles.Create(ctx, circle); err != nil {
		return nil, err
	}
	return circle, nil
}

func (s *CircleService) ListCircles(ctx context.Context, viewerID uint, query string, mine bool, page repository.Page) ([]models.Circle, error) {
	q := repository.CircleQuery{Page: page}
	if query != "" {
		if err := s.guard.Allow(ratelimit.ActionSearch, viewerID); err != nil {
			return nil, err
		}
		q.Search = validation.SanitizeSearch(query)
	}
	if mine {
		if err := requireUser(viewerID); err != nil {
			return nil, err
		}
		q.MemberID = viewerID
	}
	return s.circles.List(ctx, q)
}

// GetCircle resolves a numeric id or a slug and fills the viewer's role.
func (s *CircleService) GetCircle(ctx context.Context, viewerID uint, idOrSlug string) (*models.Circle, error) {
	var (
		circle *models.Circle
		err    error
	)
	if id, parseErr := strconv.ParseUint(idOrSlug, 10, 64); parseErr == nil {
		circle, err = s.circles.GetByID(ctx, uint(id))
	} else {
		circle, err = s.circles.GetBySlug(ctx, strings.ToLower(idOrSlug))
	}
	if err != nil {
		return nil, err
	}
	if viewerID != 0 {
		m, err := s.circles.GetMember(ctx, circle.ID, viewerID)
		if err != nil {
			return nil, err
		}
		if m != nil {
			circle.MyRole = string(m.Role)
		}
	}
	return circle, nil
}

// Join adds the user to a public circle immediately. For a private circle it files a
// join request and notifies the circle's reviewers.
func (s *CircleService) Join(ctx context.Context, userID, circleID uint) (*JoinResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	circle, err := s.circles.GetByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	member, err := s.circles.GetMember(ctx, circleID, userID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		return &JoinResult{Joined: true}, nil
	}

	if !circle.IsPrivate {
		if err := s.circles.AddMember(ctx, circleID, userID, models.CircleRoleMember); err != nil {
			return nil, err
		}
		return &JoinResult{Joined: true}, nil
	}

	req, err := s.circles.RequestJoin(ctx, circleID, userID)
	if err != nil {
		return nil, err
	}
	reviewers, err := s.circles.ListReviewers(ctx, circleID)
	if err != nil {
		return nil, err
	}
	notes := make([]models.Notification, 0, len(reviewers))
	for _, r := range reviewers {
		actor := userID
		notes = append(notes, models.Notification{
			RecipientID: r,
			ActorID:     &actor,
			Type:        models.NotificationJoinRequest,
			EntityID:    circleID,
			Message:     fmt.Sprintf("New request to join %s", circle.Name),
		})
	}
	s.notifier.Notify(ctx, notes...)
	return &JoinResult{Request: req}, nil
}

// ReviewJoinRequest approves or rejects a pending request. Circle admins, moderators
// and site admins may review.
func (s *CircleService) ReviewJoinRequest(ctx context.Context, reviewerID, requestID uint, approve bool) (*models.CircleJoinRequest, error) {
	req, err := s.circles.GetJoinRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCircleRole(ctx, req.CircleID, reviewerID, models.CircleRole.CanReview); err != nil {
		return nil, err
	}
	reviewed, note, err := s.circles.ReviewJoinRequest(ctx, requestID, reviewerID, approve)
	if err != nil {
		return nil, err
	}
	if note != nil {
		realtime.Emit(ctx, s.feed, realtime.TableNotifications, realtime.Insert, note,
			realtime.ScopeID("recipient_id", note.RecipientID))
	}
	return reviewed, nil
}

func (s *CircleService) ListJoinRequests(ctx context.Context, viewerID, circleID uint) ([]models.CircleJoinRequest, error) {
	if err := s.requireCircleRole(ctx, circleID, viewerID, models.CircleRole.CanReview); err != nil {
		return nil, err
	}
	return s.circles.ListJoinRequests(ctx, circleID, models.JoinRequestPending)
}

// Leave removes the user. The last admin cannot leave.
func (s *CircleService) Leave(ctx context.Context, userID, circleID uint) error {
	member, err := s.circles.GetMember(ctx, circleID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return models.NewNotFoundError("Membership", userID)
	}
	if member.Role == models.CircleRoleAdmin {
		if err := s.ensureAnotherAdmin(ctx, circleID); err != nil {
			return err
		}
	}
	return s.circles.RemoveMember(ctx, circleID, userID)
}

func (s *CircleService) ListMembers(ctx context.Context, viewerID, circleID uint, page repository.Page) ([]models.CircleMember, error) {
	if _, err := s.readable(ctx, viewerID, circleID); err != nil {
		return nil, err
	}
	return s.circles.ListMembers(ctx, circleID, page)
}

// SetMemberRole changes a member's role. Only circle admins and site admins may, and
// the last admin cannot be demoted.
func (s *CircleService) SetMemberRole(ctx context.Context, actorID, circleID, userID uint, role models.CircleRole) error {
	if !role.Valid() {
		return models.NewValidationError("Role must be admin, moderator or member")
	}
	if err := s.requireCircleRole(ctx, circleID, actorID, isCircleAdmin); err != nil {
		return err
	}
	member, err := s.circles.GetMember(ctx, circleID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return models.NewNotFoundError("Membership", userID)
	}
	if member.Role == models.CircleRoleAdmin && role != models.CircleRoleAdmin {
		if err := s.ensureAnotherAdmin(ctx, circleID); err != nil {
			return err
		}
	}
	return s.circles.SetMemberRole(ctx, circleID, userID, role)
}

func (s *CircleService) ListPosts(ctx context.Context, viewerID, circleID uint, page repository.Page) ([]models.CirclePost, error) {
	if _, err := s.readable(ctx, viewerID, circleID); err != nil {
		return nil, err
	}
	return s.circles.ListPosts(ctx, circleID, page)
}

func (s *CircleService) CreatePost(ctx context.Context, in CreateCirclePostInput) (*models.CirclePost, error) {
	if err := s.requireMember(ctx, in.CircleID, in.UserID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionPost, in.UserID); err != nil {
		return nil, err
	}
	content, err := clean(validation.FieldPost, in.Content)
	if err != nil {
		return nil, err
	}
	images, err := cleanMediaURLs(in.ImageURLs, maxCirclePostImages)
	if err != nil {
		return nil, err
	}
	post := &models.CirclePost{CircleID: in.CircleID, UserID: in.UserID, Content: content, ImageURLs: images}
	if err := s.circles.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	realtime.Emit(ctx, s.feed, realtime.TableCirclePosts, realtime.Insert, post,
		realtime.ScopeID("circle_id", post.CircleID))
	return post, nil
}

func (s *CircleService) ListMessages(ctx context.Context, viewerID, circleID uint, page repository.Page) ([]models.CircleMessage, error) {
	if err := s.requireMember(ctx, circleID, viewerID); err != nil {
		return nil, err
	}
	return s.circles.ListMessages(ctx, circleID, page)
}

func (s *CircleService) SendMessage(ctx context.Context, userID, circleID uint, content string) (*models.CircleMessage, error) {
	if err := s.requireMember(ctx, circleID, userID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionMessage, userID); err != nil {
		return nil, err
	}
	text, err := clean(validation.FieldMessage, content)
	if err != nil {
		return nil, err
	}
	msg := &models.CircleMessage{CircleID: circleID, SenderID: userID, Content: text}
	if err := s.circles.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	realtime.Emit(ctx, s.feed, realtime.TableCircleMessages, realtime.Insert, msg,
		realtime.ScopeID("circle_id", circleID))
	return msg, nil
}

// DeleteCircle removes the circle and everything in it in one transaction.
func (s *CircleService) DeleteCircle(ctx context.Context, actorID, circleID uint) error {
	if err := s.requireCircleRole(ctx, circleID, actorID, isCircleAdmin); err != nil {
		return err
	}
	return s.circles.DeleteCascade(ctx, circleID)
}

func isCircleAdmin(r models.CircleRole) bool { return r == models.CircleRoleAdmin }

// requireCircleRole passes when userID holds a role accepted by ok, or is a site admin.
func (s *CircleService) requireCircleRole(ctx context.Context, circleID, userID uint, ok func(models.CircleRole) bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	member, err := s.circles.GetMember(ctx, circleID, userID)
	if err != nil {
		return err
	}
	if member != nil && ok(member.Role) {
		return nil
	}
	admin, err := s.guard.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError("You do not have permission to manage this circle")
	}
	return nil
}

func (s *CircleService) requireMember(ctx context.Context, circleID, userID uint) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	member, err := s.circles.GetMember(ctx, circleID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		if _, err := s.circles.GetByID(ctx, circleID); err != nil {
			return err
		}
		return models.NewForbiddenError("Join this circle first")
	}
	return nil
}

// readable loads the circle and, for private circles, requires membership or site admin.
func (s *CircleService) readable(ctx context.Context, viewerID, circleID uint) (*models.Circle, error) {
	circle, err := s.circles.GetByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if !circle.IsPrivate {
		return circle, nil
	}
	if err := s.requireCircleRole(ctx, circleID, viewerID, models.CircleRole.Valid); err != nil {
		return nil, models.NewForbiddenError("This circle is private")
	}
	return circle, nil
}

func (s *CircleService) ensureAnotherAdmin(ctx context.Context, circleID uint) error {
	admins, err := s.circles.CountRole(ctx, circleID, models.CircleRoleAdmin)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return models.NewConflictError("A circle needs at least one admin")
	}
	return nil
}
