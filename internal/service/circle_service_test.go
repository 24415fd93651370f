package service

import (
	"context"
	"strconv"
	"testing"

	"campushub/internal/models"
	"campushub/internal/realtime"
	"campushub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCircleService(h *harness) *CircleService {
	return NewCircleService(repository.NewCircleRepository(h.db), h.notifier, h.feed, h.guard)
}

func TestCircleService_CreateDerivesSlug(t *testing.T) {
	h := newHarness(t)
	svc := newCircleService(h)
	ctx := context.Background()
	owner := h.profile(t, "asha")

	circle, err := svc.CreateCircle(ctx, CreateCircleInput{UserID: owner.ID, Name: "Night Owls!"})
	require.NoError(t, err)
	assert.Equal(t, "night-owls", circle.Slug)
	assert.Equal(t, string(models.CircleRoleAdmin), circle.MyRole)

	_, err = svc.CreateCircle(ctx, CreateCircleInput{UserID: owner.ID, Name: "Admin", Slug: "admin"})
	assertAppCode(t, err, models.CodeValidation)

	_, err = svc.CreateCircle(ctx, CreateCircleInput{UserID: owner.ID, Name: "Owls again", Slug: "night-owls"})
	assertAppCode(t, err, models.CodeConflict)

	bySlug, err := svc.GetCircle(ctx, owner.ID, "night-owls")
	require.NoError(t, err)
	byID, err := svc.GetCircle(ctx, 0, strconv.FormatUint(uint64(circle.ID), 10))
	require.NoError(t, err)
	assert.Equal(t, bySlug.ID, byID.ID)
	assert.Equal(t, string(models.CircleRoleAdmin), bySlug.MyRole)
	assert.Empty(t, byID.MyRole)
}

func TestCircleService_PublicJoinIsImmediate(t *testing.T) {
	h := newHarness(t)
	svc := newCircleService(h)
	ctx := context.Background()
	owner := h.profile(t, "asha")
	joiner := h.profile(t, "ravi")
	circle, err := svc.CreateCircle(ctx, CreateCircleInput{UserID: owner.ID, Name: "Chess Club"})
	require.NoError(t, err)

	res, err := svc.Join(ctx, joiner.ID, circle.ID)
	require.NoError(t, err)
	assert.True(t, res.Joined)
	assert.Nil(t, res.Request)

	members, err := svc.ListMembers(ctx, joiner.ID, circle.ID, repository.Page{})
	require.NoError(t, err)
	assert.Len(t, members, 2)

	mine, err := svc.ListCircles(ctx, joiner.ID, "", true, repository.Page{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestCircleService_PrivateJoinFlow(t *testing.T) {
	h := newHarness(t)
	svc := newCircleService(h)
	ctx := context.Background()
	owner := h.profile(t, "asha")
	applicant := h.profile(t, "ravi")
	outsider := h.profile(t, "kiran")
	circle, err := svc.CreateCircle(ctx, CreateCircleInput{UserID: owner.ID, Name: "Hostel B", IsPrivate: true})
	require.NoError(t, err)
	approved := h.record(t, realtime.FilterID(realtime.TableNotifications, "recipient_id", applicant.ID))

	res, err := svc.Join(ctx, applicant.ID, circle.ID)
	require.NoError(t, err)
	assert.False(t, res.Joined)
	require.NotNil(t, res.Request)

	notes, err := h.notifier.List(ctx, owner.ID, true, repository.Page{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationJoinRequest, notes[0].Type)
	assert.Equal(t, circle.ID, notes[0].EntityID)

	_, err = svc.ListMembers(ctx, applicant.ID, circle.ID, repository.Page{})
	assertAppCode(t, err, models.CodeForbidden)
	_, err = svc.CreatePost(ctx, CreateCirclePostInput{UserID: applicant.ID, CircleID: circle.ID, Content: "hi"})
	assertAppCode(t, err, models.CodeForbidden)

	_, err = svc.ListJoinRequests(ctx, outsider.ID, circle.ID)
	assertAppCode(t, err, models.CodeForbidden)
	_, err = svc.ReviewJoinRequest(ctx, outsider.ID, res.Request.ID, true)
	assertAppCode(t, err, models.CodeForbidden)

	pending, err := svc.ListJoinRequests(ctx, owner.ID, circle.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	reviewed, err := svc.ReviewJoinRequest(ctx, owner.ID, res.Request.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestApproved, reviewed.Status)
	pushed := approved.all()
	require.Len(t, pushed, 1)
	var live models.Notification
	require.NoError(t, pushed[0].Decode(&live))
	stored, err := h.notifier.List(ctx, applicant.ID, true, repository.Page{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotZero(t, live.ID)
	assert.Equal(t, stored[0].ID, live.ID)
	assert.Equal(t, models.NotificationJoinApproved, live.Type)

	posts := h.record(t, realtime.FilterID(realtime.TableCirclePosts, "circle_id", circle.ID))
	_, err = svc.CreatePost(ctx, CreateCirclePostInput{UserID: applicant.ID, CircleID: circle.ID, Content: "hi all"})
	require.NoError(t, err)
	assert.Len(t, posts.all(), 1)
}

func TestCircleService_SiteAdminCanReview(t *testing.T) {
	h := newHarness(t)
	svc := newCircleService(h)
	ctx := context.Background()
	owner := h.profile(t, "asha")
	applicant := h.profile(t, "ravi")
	dean := h.admin(t, "dean")
	circle, err := svc.CreateCircle(ctx, CreateCircleInput{UserID: owner.ID, Name: "Hostel C", IsPrivate: true})
	require.NoError(t, err)
	res, err := svc.Join(ctx, applicant.ID, circle.ID)
	require.NoError(t, err)

	reviewed, err := svc.ReviewJoinRequest(ctx, dean.ID, res.Request.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestRejected, reviewed.Status)
}

func TestCircleService_LastAdminRules(t *testing.T) {
	h := newHarness(t)
	svc := newCircleService(h)
	ctx := context.Background()
	owner := h.profile(t, "asha")
	member := h.profile(t, "ravi")
	circle, err := svc.CreateCircle(ctx, CreateCircleInput{UserID: owner.ID, Name: "Robotics"})
	require.NoError(t, err)
	_, err = svc.Join(ctx, member.ID, circle.ID)
	require.NoError(t, err)

	assertAppCode(t, svc.Leave(ctx, owner.ID, circle.ID), models.CodeConflict)
	assertAppCode(t, svc.SetMemberRole(ctx, owner.ID, circle.ID, owner.ID, models.CircleRoleMember), models.CodeConflict)
	assertAppCode(t, svc.SetMemberRole(ctx, member.ID, circle.ID, member.ID, models.CircleRoleAdmin), models.CodeForbidden)
	assertAppCode(t, svc.SetMemberRole(ctx, owner.ID, circle.ID, member.ID, "king"), models.CodeValidation)

	require.NoError(t, svc.SetMemberRole(ctx, owner.ID, circle.ID, member.ID, models.CircleRoleAdmin))
	require.NoError(t, svc.Leave(ctx, owner.ID, circle.ID))
	assertAppCode(t, svc.Leave(ctx, owner.ID, circle.ID), models.CodeNotFound)
}

func TestCircleService_MessagesAndDelete(t *testing.T) {
	h := newHarness(t)
	svc := newCircleService(h)
	ctx := context.Background()
	owner := h.profile(t, "asha")
	member := h.profile(t, "ravi")
	circle, err := svc.CreateCircle(ctx, CreateCircleInput{UserID: owner.ID, Name: "Film Society"})
	require.NoError(t, err)
	_, err = svc.Join(ctx, member.ID, circle.ID)
	require.NoError(t, err)
	chat := h.record(t, realtime.FilterID(realtime.TableCircleMessages, "circle_id", circle.ID))

	_, err = svc.SendMessage(ctx, member.ID, circle.ID, "movie tonight?")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, owner.ID, circle.ID, "yes")
	require.NoError(t, err)
	assert.Len(t, chat.all(), 2)

	msgs, err := svc.ListMessages(ctx, member.ID, circle.ID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "movie tonight?", msgs[0].Content)

	assertAppCode(t, svc.DeleteCircle(ctx, member.ID, circle.ID), models.CodeForbidden)
	require.NoError(t, svc.DeleteCircle(ctx, owner.ID, circle.ID))
	_, err = svc.GetCircle(ctx, owner.ID, "film-society")
	assertAppCode(t, err, models.CodeNotFound)
}
