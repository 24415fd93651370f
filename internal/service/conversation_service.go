package service

import (
	"context"

	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/realtime"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

// liveMessageLimit bounds the messages a live conversation view loads.
const liveMessageLimit = 100

type ConversationService struct {
	convRepo    repository.ConversationRepository
	profileRepo repository.ProfileRepository
	postRepo    repository.PostRepository
	feed        realtime.Feed
	guard       *Guard
}

type SendMessageInput struct {
	SenderID       uint
	ConversationID uint
	Content        string
	SharedPostID   *uint
}

func NewConversationService(
	convRepo repository.ConversationRepository,
	profileRepo repository.ProfileRepository,
	postRepo repository.PostRepository,
	feed realtime.Feed,
	guard *Guard,
) *ConversationService {
	return &ConversationService{
		convRepo:    convRepo,
		profileRepo: profileRepo,
		postRepo:    postRepo,
		feed:        feed,
		guard:       guard,
	}
}

// Start returns the conversation between userID and otherID, creating it on first use.
func (s *ConversationService) Start(ctx context.Context, userID, otherID uint) (*models.Conversation, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if userID == otherID {
		return nil, models.NewValidationError("You cannot message yourself")
	}
	if _, err := s.profileRepo.GetByID(ctx, otherID); err != nil {
		return nil, err
	}
	return s.convRepo.GetOrCreate(ctx, userID, otherID)
}

// List returns the user's conversations with unread counts and last messages derived
// from the message rows.
func (s *ConversationService) List(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.convRepo.ListForUser(ctx, userID)
}

// Participant loads the conversation and fails unless userID is in it.
func (s *ConversationService) Participant(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Includes(userID) {
		return nil, models.NewForbiddenError("You are not part of this conversation")
	}
	return conv, nil
}

func (s *ConversationService) Messages(ctx context.Context, userID, conversationID uint, page repository.Page) ([]models.DirectMessage, error) {
	if _, err := s.Participant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.convRepo.ListMessages(ctx, conversationID, page)
}

// LoadLive is the loader of a live conversation view.
func (s *ConversationService) LoadLive(ctx context.Context, conversationID, viewerID uint) ([]models.DirectMessage, int64, error) {
	msgs, err := s.Messages(ctx, viewerID, conversationID, repository.Page{Limit: liveMessageLimit})
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.convRepo.UnreadCount(ctx, conversationID, viewerID)
	if err != nil {
		return nil, 0, err
	}
	return msgs, unread, nil
}

// Send stores a message. A message sharing a post may have empty text.
func (s *ConversationService) Send(ctx context.Context, in SendMessageInput) (*models.DirectMessage, error) {
	if err := requireUser(in.SenderID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionMessage, in.SenderID); err != nil {
		return nil, err
	}
	content, err := clean(validation.FieldMessage, in.Content)
	if err != nil && in.SharedPostID == nil {
		return nil, err
	}
	if _, err := s.Participant(ctx, in.ConversationID, in.SenderID); err != nil {
		return nil, err
	}
	if in.SharedPostID != nil {
		if _, err := s.postRepo.GetByID(ctx, *in.SharedPostID, 0); err != nil {
			return nil, err
		}
	}

	msg := &models.DirectMessage{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        content,
		SharedPostID:   in.SharedPostID,
	}
	if err := s.convRepo.SendMessage(ctx, msg); err != nil {
		return nil, err
	}
	realtime.Emit(ctx, s.feed, realtime.TableDirectMessages, realtime.Insert, msg,
		realtime.ScopeID("conversation_id", msg.ConversationID))
	return msg, nil
}

// MarkRead marks every message from the other participant as read.
func (s *ConversationService) MarkRead(ctx context.Context, userID, conversationID uint) (int64, error) {
	if _, err := s.Participant(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	n, err := s.convRepo.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		realtime.Emit(ctx, s.feed, realtime.TableConversationReads, realtime.Update,
			realtime.ReadReceipt{ConversationID: conversationID, ReaderID: userID},
			realtime.ScopeID("conversation_id", conversationID))
	}
	return n, nil
}
