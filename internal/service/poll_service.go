package service

import (
	"context"
	"time"

	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/realtime"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

const (
	minPollOptions = 2
	maxPollOptions = 10
)

type PollService struct {
	polls repository.PollRepository
	feed  realtime.Feed
	guard *Guard
	now   func() time.Time
}

type CreatePollInput struct {
	UserID    uint
	Question  string
	Options   []string
	ExpiresAt *time.Time
}

func NewPollService(polls repository.PollRepository, feed realtime.Feed, guard *Guard) *PollService {
	return &PollService{polls: polls, feed: feed, guard: guard, now: time.Now}
}

// CreatePoll stores a question with 2 to 10 sanitized options. Options that
// sanitize to nothing are rejected rather than dropped.
func (s *PollService) CreatePoll(ctx context.Context, in CreatePollInput) (*models.Poll, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionPost, in.UserID); err != nil {
		return nil, err
	}
	question, err := clean(validation.FieldPollQuestion, in.Question)
	if err != nil {
		return nil, err
	}
	if len(in.Options) < minPollOptions || len(in.Options) > maxPollOptions {
		return nil, models.NewValidationError("A poll needs between 2 and 10 options")
	}
	options := make([]models.PollOption, 0, len(in.Options))
	for _, raw := range in.Options {
		text, err := clean(validation.FieldPollOption, raw)
		if err != nil {
			return nil, err
		}
		options = append(options, models.PollOption{Text: text})
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, models.NewValidationError("expires_at must be in the future")
	}

	poll := &models.Poll{
		CreatorID: in.UserID,
		Question:  question,
		Options:   options,
		ExpiresAt: in.ExpiresAt,
	}
	if err := s.polls.Create(ctx, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

// ListPolls returns polls newest first with counts and the viewer's vote.
func (s *PollService) ListPolls(ctx context.Context, viewerID uint, page repository.Page) ([]models.Poll, error) {
	return s.polls.List(ctx, viewerID, page)
}

func (s *PollService) GetPoll(ctx context.Context, viewerID, pollID uint) (*models.Poll, error) {
	return s.polls.GetByID(ctx, pollID, viewerID)
}

// Vote records or replaces the user's choice and returns the refreshed poll.
func (s *PollService) Vote(ctx context.Context, userID, pollID, optionID uint) (*models.Poll, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := s.guard.Allow(ratelimit.ActionVote, userID); err != nil {
		return nil, err
	}
	poll, err := s.polls.GetByID(ctx, pollID, userID)
	if err != nil {
		return nil, err
	}
	if poll.ExpiresAt != nil && !poll.ExpiresAt.After(s.now()) {
		return nil, models.NewConflictError("This poll has closed")
	}
	if err := s.polls.Vote(ctx, pollID, userID, optionID); err != nil {
		return nil, err
	}
	updated, err := s.polls.GetByID(ctx, pollID, userID)
	if err != nil {
		return nil, err
	}
	realtime.Emit(ctx, s.feed, realtime.TablePollVotes, realtime.Update,
		models.PollVote{PollID: pollID, UserID: userID, OptionID: optionID},
		realtime.ScopeID("poll_id", pollID))
	return updated, nil
}

func (s *PollService) DeletePoll(ctx context.Context, userID, pollID uint) error {
	poll, err := s.polls.GetByID(ctx, pollID, 0)
	if err != nil {
		return err
	}
	if err := s.guard.OwnerOrAdmin(ctx, poll.CreatorID, userID, "You can only delete your own polls"); err != nil {
		return err
	}
	return s.polls.Delete(ctx, pollID)
}
