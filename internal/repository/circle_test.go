package repository

import (
	"context"
	"regexp"
	"testing"

	"campushub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createCircle(t *testing.T, repo CircleRepository, owner uint, slug string, private bool) *models.Circle {
	t.Helper()
	c := &models.Circle{Name: slug, Slug: slug, CreatedBy: owner, IsPrivate: private}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestCircleRepository_CreateMakesCreatorAdmin(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCircleRepository(db)
	ctx := context.Background()
	owner := createProfile(t, db, "asha")

	c := createCircle(t, repo, owner.ID, "chess-club", false)

	m, err := repo.GetMember(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.CircleRoleAdmin, m.Role)

	got, err := repo.GetBySlug(ctx, "chess-club")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.MemberCount)

	err = repo.Create(ctx, &models.Circle{Name: "dup", Slug: "chess-club", CreatedBy: owner.ID})
	assertAppCode(t, err, models.CodeConflict)

	none, err := repo.GetMember(ctx, c.ID, 999)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestCircleRepository_JoinRequestApproval(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCircleRepository(db)
	ctx := context.Background()
	owner := createProfile(t, db, "asha")
	applicant := createProfile(t, db, "ravi")
	c := createCircle(t, repo, owner.ID, "night-owls", true)

	req, err := repo.RequestJoin(ctx, c.ID, applicant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestPending, req.Status)

	rejected, note, err := repo.ReviewJoinRequest(ctx, req.ID, owner.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestRejected, rejected.Status)
	assert.Nil(t, note)

	m, err := repo.GetMember(ctx, c.ID, applicant.ID)
	require.NoError(t, err)
	assert.Nil(t, m)

	again, err := repo.RequestJoin(ctx, c.ID, applicant.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, again.ID)
	assert.Equal(t, models.JoinRequestPending, again.Status)

	pending, err := repo.ListJoinRequests(ctx, c.ID, models.JoinRequestPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Profile)

	approved, note, err := repo.ReviewJoinRequest(ctx, req.ID, owner.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestApproved, approved.Status)
	require.NotNil(t, note)
	assert.NotZero(t, note.ID)

	m, err = repo.GetMember(ctx, c.ID, applicant.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.CircleRoleMember, m.Role)

	notes, err := NewNotificationRepository(db).ListForUser(ctx, applicant.ID, true, Page{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationJoinApproved, notes[0].Type)
	assert.Equal(t, note.ID, notes[0].ID)

	_, _, err = repo.ReviewJoinRequest(ctx, req.ID, owner.ID, true)
	assertAppCode(t, err, models.CodeConflict)
}

func TestCircleRepository_MembersAndRoles(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCircleRepository(db)
	ctx := context.Background()
	owner := createProfile(t, db, "asha")
	mod := createProfile(t, db, "ravi")
	c := createCircle(t, repo, owner.ID, "robotics", false)

	require.NoError(t, repo.AddMember(ctx, c.ID, mod.ID, models.CircleRoleMember))
	require.NoError(t, repo.AddMember(ctx, c.ID, mod.ID, models.CircleRoleMember))
	require.NoError(t, repo.SetMemberRole(ctx, c.ID, mod.ID, models.CircleRoleModerator))

	reviewers, err := repo.ListReviewers(ctx, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{owner.ID, mod.ID}, reviewers)

	admins, err := repo.CountRole(ctx, c.ID, models.CircleRoleAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, admins)

	members, err := repo.ListMembers(ctx, c.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, members, 2)

	mine, err := repo.List(ctx, CircleQuery{MemberID: mod.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.EqualValues(t, 2, mine[0].MemberCount)

	require.NoError(t, repo.RemoveMember(ctx, c.ID, mod.ID))
	assertAppCode(t, repo.RemoveMember(ctx, c.ID, mod.ID), models.CodeNotFound)
}

func TestCircleRepository_DeleteCascadeInTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCircleRepository(db)
	ctx := context.Background()
	owner := createProfile(t, db, "asha")
	member := createProfile(t, db, "ravi")
	applicant := createProfile(t, db, "meera")
	c := createCircle(t, repo, owner.ID, "film-society", true)
	keep := createCircle(t, repo, owner.ID, "keep-me", false)

	require.NoError(t, repo.AddMember(ctx, c.ID, member.ID, models.CircleRoleMember))
	require.NoError(t, repo.CreatePost(ctx, &models.CirclePost{CircleID: c.ID, UserID: owner.ID, Content: "screening friday"}))
	require.NoError(t, repo.CreateMessage(ctx, &models.CircleMessage{CircleID: c.ID, SenderID: member.ID, Content: "in"}))
	_, err := repo.RequestJoin(ctx, c.ID, applicant.ID)
	require.NoError(t, err)
	require.NoError(t, repo.CreatePost(ctx, &models.CirclePost{CircleID: keep.ID, UserID: owner.ID, Content: "stay"}))

	require.NoError(t, repo.DeleteCascade(ctx, c.ID))

	for _, m := range []any{&models.CircleMember{}, &models.CirclePost{}, &models.CircleMessage{}, &models.CircleJoinRequest{}} {
		var n int64
		require.NoError(t, db.Model(m).Where("circle_id = ?", c.ID).Count(&n).Error)
		assert.Zero(t, n)
	}
	posts, err := repo.ListPosts(ctx, keep.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	assertAppCode(t, repo.DeleteCascade(ctx, c.ID), models.CodeNotFound)
}

func TestCircleRepository_DeleteCascadeUsesProcedureOnPostgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCircleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT delete_circle_cascade($1)")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"delete_circle_cascade"}).AddRow(1))

	require.NoError(t, repo.DeleteCascade(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircleRepository_MessagesChronological(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCircleRepository(db)
	ctx := context.Background()
	owner := createProfile(t, db, "asha")
	c := createCircle(t, repo, owner.ID, "quiz", false)

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateMessage(ctx, &models.CircleMessage{CircleID: c.ID, SenderID: owner.ID, Content: text}))
	}
	msgs, err := repo.ListMessages(ctx, c.ID, Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)
	require.NotNil(t, msgs[1].Sender)
}
