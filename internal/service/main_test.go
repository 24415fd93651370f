package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"campushub/internal/database"
	"campushub/internal/models"
	"campushub/internal/realtime"
	"campushub/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// harness wires services over an in-memory SQLite store and an in-process feed.
type harness struct {
	db       *gorm.DB
	feed     *realtime.MemoryFeed
	admins   map[uint]bool
	guard    *Guard
	notifier *NotificationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	h := &harness{
		db:     db,
		feed:   realtime.NewMemoryFeed(),
		admins: map[uint]bool{},
	}
	h.guard = NewGuard(nil, func(_ context.Context, userID uint) (bool, error) {
		return h.admins[userID], nil
	})
	h.notifier = NewNotificationService(repository.NewNotificationRepository(db), h.feed)
	return h
}

func (h *harness) profile(t *testing.T, handle string) *models.Profile {
	t.Helper()
	username := handle
	p := &models.Profile{
		Email:        fmt.Sprintf("%s@campus.edu", handle),
		PasswordHash: "hash",
		Username:     &username,
		DisplayName:  handle,
	}
	require.NoError(t, repository.NewProfileRepository(h.db).CreateProfile(context.Background(), p))
	return p
}

func (h *harness) admin(t *testing.T, handle string) *models.Profile {
	t.Helper()
	p := h.profile(t, handle)
	h.admins[p.ID] = true
	return p
}

func (h *harness) posts() *PostService {
	return NewPostService(repository.NewPostRepository(h.db), h.notifier, h.feed, h.guard)
}

// recorder collects events delivered under one filter.
type recorder struct {
	mu     sync.Mutex
	events []realtime.ChangeEvent
}

func (h *harness) record(t *testing.T, f realtime.Filter) *recorder {
	t.Helper()
	r := &recorder{}
	sub, err := h.feed.Subscribe(context.Background(), f, func(ev realtime.ChangeEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return r
}

func (r *recorder) all() []realtime.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.ChangeEvent(nil), r.events...)
}

func (r *recorder) types() []realtime.EventType {
	var out []realtime.EventType
	for _, ev := range r.all() {
		out = append(out, ev.Type)
	}
	return out
}

func assertAppCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}
