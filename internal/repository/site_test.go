package repository

import (
	"context"
	"testing"

	"campushub/internal/cache"
	"campushub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	cache.SetClient(c)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = c.Close()
	})
	return mr
}

func TestMenuRepository_UpsertReplacesAndInvalidates(t *testing.T) {
	mr := withMiniredis(t)
	db := setupTestDB(t)
	repo := NewMenuRepository(db)
	ctx := context.Background()

	missing, err := repo.GetByDate(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Nil(t, missing)

	menu := &models.MessMenu{Date: "2026-03-02", Breakfast: []string{"poha"}, Lunch: []string{"dal", "rice"}, Source: models.MenuSourceManual}
	require.NoError(t, repo.Upsert(ctx, menu))

	got, err := repo.GetByDate(ctx, "2026-03-02")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"dal", "rice"}, got.Lunch)
	assert.True(t, mr.Exists(cache.MenuKey("2026-03-02")))

	replacement := &models.MessMenu{Date: "2026-03-02", Breakfast: []string{"idli"}, Source: models.MenuSourceAI}
	require.NoError(t, repo.Upsert(ctx, replacement))
	assert.Equal(t, menu.ID, replacement.ID)
	assert.False(t, mr.Exists(cache.MenuKey("2026-03-02")))

	got, err = repo.GetByDate(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"idli"}, got.Breakfast)
	assert.Empty(t, got.Lunch)
	assert.Equal(t, models.MenuSourceAI, got.Source)
}

func TestSettingRepository_UpsertInvalidatesCache(t *testing.T) {
	mr := withMiniredis(t)
	db := setupTestDB(t)
	repo := NewSettingRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx, "feed_thumbnail_url")
	assertAppCode(t, err, models.CodeNotFound)

	_, err = repo.Upsert(ctx, "feed_thumbnail_url", "/uploads/a.webp")
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "motd", "exams start monday")
	require.NoError(t, err)

	s, err := repo.Get(ctx, "feed_thumbnail_url")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/a.webp", s.Value)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.True(t, mr.Exists(cache.SettingsAllKey))

	_, err = repo.Upsert(ctx, "feed_thumbnail_url", "/uploads/b.webp")
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.SettingsAllKey))

	s, err = repo.Get(ctx, "feed_thumbnail_url")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/b.webp", s.Value)

	all, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/b.webp", all["feed_thumbnail_url"])
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	a := createProfile(t, db, "asha")
	b := createProfile(t, db, "ravi")

	notes := []models.Notification{
		{RecipientID: a.ID, Type: models.NotificationJoinRequest, EntityID: 1, Message: "one"},
		{RecipientID: a.ID, Type: models.NotificationJoinRequest, EntityID: 2, Message: "two"},
		{RecipientID: a.ID, Type: models.NotificationJoinApproved, EntityID: 3, Message: "three"},
		{RecipientID: b.ID, Type: models.NotificationJoinApproved, EntityID: 3, Message: "other"},
	}
	require.NoError(t, repo.CreateMany(ctx, notes))
	require.NoError(t, repo.CreateMany(ctx, nil))

	list, err := repo.ListForUser(ctx, a.ID, false, Page{})
	require.NoError(t, err)
	require.Len(t, list, 3)

	n, err := repo.MarkRead(ctx, a.ID, []uint{list[0].ID, notes[3].ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	unread, err := repo.ListForUser(ctx, a.ID, true, Page{})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	n, err = repo.MarkRead(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	unread, err = repo.ListForUser(ctx, b.ID, true, Page{})
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}
