package repository

import (
	"context"
	"testing"
	"time"

	"campushub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavedRepository_SaveMovesBetweenCollections(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSavedRepository(db)
	ctx := context.Background()
	a := createProfile(t, db, "asha")
	post := createPost(t, db, a.ID, "notes for DSA")

	exams := &models.SavedCollection{UserID: a.ID, Name: "exams"}
	require.NoError(t, repo.CreateCollection(ctx, exams))
	later := &models.SavedCollection{UserID: a.ID, Name: "later"}
	require.NoError(t, repo.CreateCollection(ctx, later))

	saved, err := repo.Save(ctx, a.ID, post.ID, &exams.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.CollectionID)
	assert.Equal(t, exams.ID, *saved.CollectionID)

	saved, err = repo.Save(ctx, a.ID, post.ID, &later.ID)
	require.NoError(t, err)
	assert.Equal(t, later.ID, *saved.CollectionID)

	inExams, err := repo.List(ctx, a.ID, &exams.ID, Page{})
	require.NoError(t, err)
	assert.Empty(t, inExams)

	all, err := repo.List(ctx, a.ID, nil, Page{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Post)
	require.NotNil(t, all[0].Post.Author)

	cols, err := repo.ListCollections(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"exams", "later"}, []string{cols[0].Name, cols[1].Name})

	require.NoError(t, repo.Unsave(ctx, a.ID, post.ID))
	all, err = repo.List(ctx, a.ID, nil, Page{})
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = repo.Save(ctx, a.ID, 404, nil)
	assertAppCode(t, err, models.CodeNotFound)
}

func TestStoryRepository_ActiveGroups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStoryRepository(db)
	ctx := context.Background()
	a := createProfile(t, db, "asha")
	b := createProfile(t, db, "ravi")
	now := time.Now()

	mk := func(user uint, caption string, age time.Duration) *models.Story {
		s := &models.Story{
			UserID:    user,
			MediaURL:  "/uploads/" + caption + ".webp",
			Caption:   caption,
			CreatedAt: now.Add(-age),
			ExpiresAt: now.Add(-age).Add(models.StoryTTL),
		}
		require.NoError(t, repo.Create(ctx, s))
		return s
	}
	mk(a.ID, "expired", 25*time.Hour)
	a1 := mk(a.ID, "a1", 3*time.Hour)
	b1 := mk(b.ID, "b1", 2*time.Hour)
	a2 := mk(a.ID, "a2", time.Hour)

	groups, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	require.NotNil(t, groups[0].Author)
	assert.Equal(t, a.ID, groups[0].Author.ID)
	require.Len(t, groups[0].Stories, 2)
	assert.Equal(t, []uint{a1.ID, a2.ID}, []uint{groups[0].Stories[0].ID, groups[0].Stories[1].ID})
	assert.Equal(t, b1.ID, groups[1].Stories[0].ID)

	removed, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	require.NoError(t, repo.Delete(ctx, a1.ID))
	_, err = repo.GetByID(ctx, a1.ID)
	assertAppCode(t, err, models.CodeNotFound)
}

func TestMarketplaceRepository_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMarketplaceRepository(db)
	ctx := context.Background()
	a := createProfile(t, db, "asha")
	b := createProfile(t, db, "ravi")

	bike := &models.MarketplaceListing{SellerID: a.ID, Title: "Hero cycle", Category: "bikes", PriceCents: 250000, Status: models.ListingAvailable}
	book := &models.MarketplaceListing{SellerID: b.ID, Title: "CLRS", Description: "Algorithms textbook", Category: "books", PriceCents: 40000, Status: models.ListingAvailable}
	require.NoError(t, repo.Create(ctx, bike))
	require.NoError(t, repo.Create(ctx, book))

	books, err := repo.List(ctx, ListingQuery{Category: "books"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, book.ID, books[0].ID)
	require.NotNil(t, books[0].Seller)

	found, err := repo.List(ctx, ListingQuery{Search: "textbook"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, repo.SetStatus(ctx, bike.ID, models.ListingSold))
	available, err := repo.List(ctx, ListingQuery{Status: models.ListingAvailable})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, book.ID, available[0].ID)

	mine, err := repo.List(ctx, ListingQuery{SellerID: a.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.ListingSold, mine[0].Status)

	require.NoError(t, repo.Delete(ctx, bike.ID))
	assertAppCode(t, repo.Delete(ctx, bike.ID), models.CodeNotFound)
	assertAppCode(t, repo.SetStatus(ctx, bike.ID, models.ListingSold), models.CodeNotFound)
}
