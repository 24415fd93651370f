package service

import (
	"context"
	"log/slog"

	"campushub/internal/middleware"
	"campushub/internal/models"
	"campushub/internal/realtime"
	"campushub/internal/repository"
)

type NotificationService struct {
	repo repository.NotificationRepository
	feed realtime.Feed
}

func NewNotificationService(repo repository.NotificationRepository, feed realtime.Feed) *NotificationService {
	return &NotificationService{repo: repo, feed: feed}
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, page repository.Page) ([]models.Notification, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.repo.ListForUser(ctx, userID, unreadOnly, page)
}

// MarkRead marks ids read, or every unread notification when ids is empty.
func (s *NotificationService) MarkRead(ctx context.Context, userID uint, ids []uint) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, userID, ids)
}

// Notify stores notes and pushes each to its recipient. It runs after the write that
// caused the notes has committed, so failures are logged instead of returned.
func (s *NotificationService) Notify(ctx context.Context, notes ...models.Notification) {
	if s == nil || len(notes) == 0 {
		return
	}
	if err := s.repo.CreateMany(ctx, notes); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to store notifications",
			slog.Int("count", len(notes)),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, n := range notes {
		realtime.Emit(ctx, s.feed, realtime.TableNotifications, realtime.Insert, n,
			realtime.ScopeID("recipient_id", n.RecipientID))
	}
}
