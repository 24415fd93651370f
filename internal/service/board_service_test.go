package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"campushub/internal/models"
	"campushub/internal/realtime"
	"campushub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollService_CreateValidatesOptions(t *testing.T) {
	h := newHarness(t)
	svc := NewPollService(repository.NewPollRepository(h.db), h.feed, h.guard)
	ctx := context.Background()
	creator := h.profile(t, "asha")

	_, err := svc.CreatePoll(ctx, CreatePollInput{UserID: creator.ID, Question: "Best mess day?", Options: []string{"Monday"}})
	assertAppCode(t, err, models.CodeValidation)

	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = "option"
	}
	_, err = svc.CreatePoll(ctx, CreatePollInput{UserID: creator.ID, Question: "Too many?", Options: eleven})
	assertAppCode(t, err, models.CodeValidation)

	_, err = svc.CreatePoll(ctx, CreatePollInput{UserID: creator.ID, Question: "Blank?", Options: []string{"yes", "<i></i>"}})
	assertAppCode(t, err, models.CodeValidation)

	past := time.Now().Add(-time.Hour)
	_, err = svc.CreatePoll(ctx, CreatePollInput{UserID: creator.ID, Question: "Late?", Options: []string{"a", "b"}, ExpiresAt: &past})
	assertAppCode(t, err, models.CodeValidation)

	poll, err := svc.CreatePoll(ctx, CreatePollInput{UserID: creator.ID, Question: " Best   mess day? ", Options: []string{"Mon", "Fri"}})
	require.NoError(t, err)
	assert.Equal(t, "Best mess day?", poll.Question)
	require.Len(t, poll.Options, 2)
}

func TestPollService_VoteReplacesAndPublishes(t *testing.T) {
	h := newHarness(t)
	svc := NewPollService(repository.NewPollRepository(h.db), h.feed, h.guard)
	ctx := context.Background()
	creator := h.profile(t, "asha")
	voter := h.profile(t, "ravi")
	poll, err := svc.CreatePoll(ctx, CreatePollInput{UserID: creator.ID, Question: "Tea or coffee?", Options: []string{"tea", "coffee"}})
	require.NoError(t, err)
	tea, coffee := poll.Options[0].ID, poll.Options[1].ID
	votes := h.record(t, realtime.FilterID(realtime.TablePollVotes, "poll_id", poll.ID))

	got, err := svc.Vote(ctx, voter.ID, poll.ID, tea)
	require.NoError(t, err)
	require.NotNil(t, got.MyOptionID)
	assert.Equal(t, tea, *got.MyOptionID)

	got, err = svc.Vote(ctx, voter.ID, poll.ID, coffee)
	require.NoError(t, err)
	assert.Equal(t, coffee, *got.MyOptionID)
	assert.Equal(t, int64(1), got.TotalVotes)
	assert.Len(t, votes.all(), 2)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	closing := time.Now().Add(time.Hour)
	timed, err := NewPollService(repository.NewPollRepository(h.db), h.feed, h.guard).
		CreatePoll(ctx, CreatePollInput{UserID: creator.ID, Question: "Quick?", Options: []string{"y", "n"}, ExpiresAt: &closing})
	require.NoError(t, err)
	_, err = svc.Vote(ctx, voter.ID, timed.ID, timed.Options[0].ID)
	assertAppCode(t, err, models.CodeConflict)

	assertAppCode(t, svc.DeletePoll(ctx, voter.ID, poll.ID), models.CodeForbidden)
	require.NoError(t, svc.DeletePoll(ctx, creator.ID, poll.ID))
}

func TestConfessionService_StaysAnonymous(t *testing.T) {
	h := newHarness(t)
	svc := NewConfessionService(repository.NewConfessionRepository(h.db), h.guard)
	ctx := context.Background()
	author := h.profile(t, "asha")
	reader := h.profile(t, "ravi")
	dean := h.admin(t, "dean")

	c, err := svc.Create(ctx, author.ID, "I never went to the 8am lecture")
	require.NoError(t, err)
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "author")

	res, err := svc.ToggleAura(ctx, reader.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Zero(t, res.AuthorID)

	reply, err := svc.Comment(ctx, CreateConfessionCommentInput{UserID: reader.ID, ConfessionID: c.ID, Content: "same"})
	require.NoError(t, err)
	comments, err := svc.ListComments(ctx, c.ID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, reply.ID, comments[0].ID)

	assertAppCode(t, svc.Delete(ctx, author.ID, c.ID), models.CodeForbidden)
	require.NoError(t, svc.Delete(ctx, dean.ID, c.ID))
	_, err = svc.ListComments(ctx, c.ID, repository.Page{})
	assertAppCode(t, err, models.CodeNotFound)
}

func TestMarketplaceService_Lifecycle(t *testing.T) {
	h := newHarness(t)
	svc := NewMarketplaceService(repository.NewMarketplaceRepository(h.db), h.guard)
	ctx := context.Background()
	seller := h.profile(t, "asha")
	buyer := h.profile(t, "ravi")

	_, err := svc.CreateListing(ctx, CreateListingInput{UserID: seller.ID, Title: "Cycle", PriceCents: -1})
	assertAppCode(t, err, models.CodeValidation)
	_, err = svc.CreateListing(ctx, CreateListingInput{UserID: seller.ID, Title: "Cycle", Category: "two wheels"})
	assertAppCode(t, err, models.CodeValidation)

	listing, err := svc.CreateListing(ctx, CreateListingInput{
		UserID:      seller.ID,
		Title:       "Engineering Drawing kit",
		Description: "Barely used",
		PriceCents:  45000,
		Category:    " Books ",
	})
	require.NoError(t, err)
	assert.Equal(t, "books", listing.Category)
	assert.Equal(t, models.ListingAvailable, listing.Status)

	_, err = svc.MarkSold(ctx, buyer.ID, listing.ID)
	assertAppCode(t, err, models.CodeForbidden)
	sold, err := svc.MarkSold(ctx, seller.ID, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingSold, sold.Status)

	soldList, err := svc.ListListings(ctx, ListListingsInput{Status: "sold"})
	require.NoError(t, err)
	require.Len(t, soldList, 1)
	available, err := svc.ListListings(ctx, ListListingsInput{Status: "available", Category: "books"})
	require.NoError(t, err)
	assert.Empty(t, available)
	_, err = svc.ListListings(ctx, ListListingsInput{Status: "gone"})
	assertAppCode(t, err, models.CodeValidation)

	found, err := svc.ListListings(ctx, ListListingsInput{ViewerID: buyer.ID, Search: "drawing"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	assertAppCode(t, svc.DeleteListing(ctx, buyer.ID, listing.ID), models.CodeForbidden)
	require.NoError(t, svc.DeleteListing(ctx, seller.ID, listing.ID))
	_, err = svc.GetListing(ctx, listing.ID)
	assertAppCode(t, err, models.CodeNotFound)
}
