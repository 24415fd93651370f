package repository

import (
	"context"
	"time"

	"campushub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository stores one-to-one conversations and their messages.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, a, b uint) (*models.Conversation, error)
	GetByID(ctx context.Context, id uint) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.ConversationSummary, error)
	ListMessages(ctx context.Context, conversationID uint, page Page) ([]models.DirectMessage, error)
	UnreadCount(ctx context.Context, conversationID, viewerID uint) (int64, error)
	SendMessage(ctx context.Context, msg *models.DirectMessage) error
	MarkRead(ctx context.Context, conversationID, readerID uint) (int64, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository returns a new ConversationRepository.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// GetOrCreate returns the conversation for the unordered pair (a, b) in a single store
// call. Postgres uses get_or_create_conversation; other dialects, or a schema built
// without SQL migrations, insert on the ordered pair with ON CONFLICT DO NOTHING.
func (r *conversationRepository) GetOrCreate(ctx context.Context, a, b uint) (*models.Conversation, error) {
	if a == 0 || b == 0 || a == b {
		return nil, models.NewValidationError("A conversation needs two different users")
	}
	low, high := models.OrderedPair(a, b)

	if isPostgres(r.db) {
		var conv models.Conversation
		err := r.db.WithContext(ctx).Raw("SELECT * FROM get_or_create_conversation(?, ?)", low, high).Scan(&conv).Error
		if err == nil && conv.ID != 0 {
			return &conv, nil
		}
		if err != nil && !isMissingFunction(err) {
			return nil, models.NewInternalError(err)
		}
	}

	conv := models.Conversation{UserLowID: low, UserHighID: high}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_low_id"}, {Name: "user_high_id"}},
		DoNothing: true,
	}).Create(&conv).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var got models.Conversation
	if err := r.db.WithContext(ctx).Where("user_low_id = ? AND user_high_id = ?", low, high).First(&got).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &got, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "Conversation", id)
	}
	return &c, nil
}

type unreadRow struct {
	ConversationID uint
	Count          int64
}

// ListForUser returns the user's conversations, most recently active first. Unread counts
// and last messages come from direct_messages, never from the cached summary columns.
func (r *conversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	db := r.db.WithContext(ctx)

	var convs []models.Conversation
	if err := db.Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("updated_at DESC, id DESC").
		Find(&convs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(convs) == 0 {
		return []models.ConversationSummary{}, nil
	}

	ids := make([]uint, len(convs))
	others := make([]uint, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
		others[i] = c.Other(userID)
	}

	var unread []unreadRow
	if err := db.Model(&models.DirectMessage{}).
		Select("conversation_id, COUNT(*) AS count").
		Where("conversation_id IN ? AND sender_id <> ? AND is_read = ?", ids, userID, false).
		Group("conversation_id").
		Scan(&unread).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	unreadBy := make(map[uint]int64, len(unread))
	for _, u := range unread {
		unreadBy[u.ConversationID] = u.Count
	}

	var last []models.DirectMessage
	latest := db.Model(&models.DirectMessage{}).Select("MAX(id)").Where("conversation_id IN ?", ids).Group("conversation_id")
	if err := db.Where("id IN (?)", latest).Find(&last).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	lastBy := make(map[uint]*models.DirectMessage, len(last))
	for i := range last {
		lastBy[last[i].ConversationID] = &last[i]
	}

	var profiles []models.Profile
	if err := db.Where("id IN ?", uniqueIDs(others)).Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	profileBy := make(map[uint]*models.Profile, len(profiles))
	for i := range profiles {
		profileBy[profiles[i].ID] = &profiles[i]
	}

	out := make([]models.ConversationSummary, len(convs))
	for i, c := range convs {
		out[i] = models.ConversationSummary{
			Conversation: c,
			OtherUser:    profileBy[others[i]],
			LastMessage:  lastBy[c.ID],
			UnreadCount:  unreadBy[c.ID],
		}
	}
	return out, nil
}

// ListMessages returns one page counted back from the newest message, in chronological order.
func (r *conversationRepository) ListMessages(ctx context.Context, conversationID uint, page Page) ([]models.DirectMessage, error) {
	var rows []models.DirectMessage
	err := page.apply(r.db.WithContext(ctx).Preload("SharedPost").Preload("SharedPost.Author").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC")).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *conversationRepository) UnreadCount(ctx context.Context, conversationID, viewerID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, viewerID, false).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// SendMessage stores msg and refreshes the conversation's advisory summary columns.
func (r *conversationRepository) SendMessage(ctx context.Context, msg *models.DirectMessage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return models.NewInternalError(err)
		}
		now := msg.CreatedAt
		if now.IsZero() {
			now = time.Now()
		}
		if err := tx.Model(&models.Conversation{}).Where("id = ?", msg.ConversationID).Updates(map[string]any{
			"last_message":    msg.Content,
			"last_message_at": now,
			"updated_at":      now,
		}).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if msg.SharedPostID != nil {
		if err := r.db.WithContext(ctx).Preload("SharedPost").Preload("SharedPost.Author").First(msg, msg.ID).Error; err != nil {
			return models.NewInternalError(err)
		}
	}
	return nil
}

// MarkRead flags every unread message from the other participant as read.
func (r *conversationRepository) MarkRead(ctx context.Context, conversationID, readerID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
