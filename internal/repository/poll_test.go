package repository

import (
	"context"
	"encoding/json"
	"testing"

	"campushub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPoll(t *testing.T, repo PollRepository, creator uint, question string, options ...string) *models.Poll {
	t.Helper()
	p := &models.Poll{CreatorID: creator, Question: question}
	for _, o := range options {
		p.Options = append(p.Options, models.PollOption{Text: o})
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestPollRepository_VoteReplacesPreviousChoice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPollRepository(db)
	ctx := context.Background()
	a := createProfile(t, db, "asha")
	b := createProfile(t, db, "ravi")

	poll := createPoll(t, repo, a.ID, "Best canteen?", "north", "south", "east")
	other := createPoll(t, repo, a.ID, "Exam week?", "yes", "no")
	north, south := poll.Options[0].ID, poll.Options[1].ID

	require.NoError(t, repo.Vote(ctx, poll.ID, a.ID, north))
	require.NoError(t, repo.Vote(ctx, poll.ID, a.ID, south))
	require.NoError(t, repo.Vote(ctx, poll.ID, b.ID, south))

	got, err := repo.GetByID(ctx, poll.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, got.Options, 3)
	assert.Equal(t, "north", got.Options[0].Text)
	assert.EqualValues(t, 0, got.Options[0].VoteCount)
	assert.EqualValues(t, 2, got.Options[1].VoteCount)
	assert.EqualValues(t, 2, got.TotalVotes)
	require.NotNil(t, got.MyOptionID)
	assert.Equal(t, south, *got.MyOptionID)

	anon, err := repo.GetByID(ctx, poll.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, anon.MyOptionID)

	err = repo.Vote(ctx, poll.ID, a.ID, other.Options[0].ID)
	assertAppCode(t, err, models.CodeValidation)

	list, err := repo.List(ctx, b.ID, Page{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, other.ID, list[0].ID)
	assert.Nil(t, list[0].MyOptionID)
	assert.EqualValues(t, 2, list[1].TotalVotes)
}

func TestPollRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPollRepository(db)
	ctx := context.Background()
	a := createProfile(t, db, "asha")
	poll := createPoll(t, repo, a.ID, "Tea or coffee?", "tea", "coffee")
	require.NoError(t, repo.Vote(ctx, poll.ID, a.ID, poll.Options[0].ID))

	require.NoError(t, repo.Delete(ctx, poll.ID))

	var n int64
	require.NoError(t, db.Model(&models.PollOption{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.PollVote{}).Count(&n).Error)
	assert.Zero(t, n)

	assertAppCode(t, repo.Delete(ctx, poll.ID), models.CodeNotFound)
}

func TestConfessionRepository_AnonymousReads(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConfessionRepository(db)
	ctx := context.Background()
	a := createProfile(t, db, "asha")
	b := createProfile(t, db, "ravi")

	c := &models.Confession{AuthorID: a.ID, Content: "I never read the syllabus"}
	require.NoError(t, repo.Create(ctx, c))

	res, err := repo.ToggleAura(ctx, c.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, 1, res.AuraCount)

	list, err := repo.List(ctx, b.ID, Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Liked)

	raw, err := json.Marshal(list[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "author")

	res, err = repo.ToggleAura(ctx, c.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, 0, res.AuraCount)

	_, err = repo.ToggleAura(ctx, 404, b.ID)
	assertAppCode(t, err, models.CodeNotFound)
}

func TestConfessionRepository_Comments(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConfessionRepository(db)
	ctx := context.Background()
	a := createProfile(t, db, "asha")

	c := &models.Confession{AuthorID: a.ID, Content: "library naps"}
	require.NoError(t, repo.Create(ctx, c))
	other := &models.Confession{AuthorID: a.ID, Content: "other"}
	require.NoError(t, repo.Create(ctx, other))

	root := &models.ConfessionComment{ConfessionID: c.ID, AuthorID: a.ID, Content: "same"}
	require.NoError(t, repo.CreateComment(ctx, root))
	require.NoError(t, repo.CreateComment(ctx, &models.ConfessionComment{ConfessionID: c.ID, AuthorID: a.ID, Content: "+1", ParentID: &root.ID}))

	err := repo.CreateComment(ctx, &models.ConfessionComment{ConfessionID: other.ID, AuthorID: a.ID, Content: "x", ParentID: &root.ID})
	assertAppCode(t, err, models.CodeValidation)

	comments, err := repo.ListComments(ctx, c.ID, Page{})
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "same", comments[0].Content)
	require.NotNil(t, comments[1].ParentID)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentCount)

	require.NoError(t, repo.Delete(ctx, c.ID))
	comments, err = repo.ListComments(ctx, c.ID, Page{})
	require.NoError(t, err)
	assert.Empty(t, comments)
}
