package repository

import (
	"context"
	"errors"
	"time"

	"campushub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PollRepository stores polls, options and votes.
type PollRepository interface {
	Create(ctx context.Context, poll *models.Poll) error
	GetByID(ctx context.Context, id, viewerID uint) (*models.Poll, error)
	List(ctx context.Context, viewerID uint, page Page) ([]models.Poll, error)
	Vote(ctx context.Context, pollID, userID, optionID uint) error
	Delete(ctx context.Context, id uint) error
}

type pollRepository struct {
	db *gorm.DB
}

// NewPollRepository returns a new PollRepository.
func NewPollRepository(db *gorm.DB) PollRepository {
	return &pollRepository{db: db}
}

// Create stores the poll with its options in one transaction.
func (r *pollRepository) Create(ctx context.Context, poll *models.Poll) error {
	for i := range poll.Options {
		poll.Options[i].Position = i
	}
	if err := r.db.WithContext(ctx).Create(poll).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *pollRepository) GetByID(ctx context.Context, id, viewerID uint) (*models.Poll, error) {
	var poll models.Poll
	if err := r.base(ctx).First(&poll, id).Error; err != nil {
		return nil, notFoundOr(err, "Poll", id)
	}
	polls := []models.Poll{poll}
	if err := r.fillVotes(ctx, viewerID, polls); err != nil {
		return nil, err
	}
	return &polls[0], nil
}

func (r *pollRepository) List(ctx context.Context, viewerID uint, page Page) ([]models.Poll, error) {
	var rows []models.Poll
	if err := page.apply(r.base(ctx).Order("created_at DESC, id DESC")).Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.fillVotes(ctx, viewerID, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *pollRepository) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") })
}

type optionCountRow struct {
	OptionID uint
	Count    int64
}

func (r *pollRepository) fillVotes(ctx context.Context, viewerID uint, polls []models.Poll) error {
	if len(polls) == 0 {
		return nil
	}
	ids := make([]uint, len(polls))
	for i := range polls {
		ids[i] = polls[i].ID
	}

	var counts []optionCountRow
	if err := r.db.WithContext(ctx).Model(&models.PollVote{}).
		Select("option_id, COUNT(*) AS count").
		Where("poll_id IN ?", ids).
		Group("option_id").
		Scan(&counts).Error; err != nil {
		return models.NewInternalError(err)
	}
	byOption := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byOption[c.OptionID] = c.Count
	}

	mine := map[uint]uint{}
	if viewerID != 0 {
		var votes []models.PollVote
		if err := r.db.WithContext(ctx).Where("poll_id IN ? AND user_id = ?", ids, viewerID).Find(&votes).Error; err != nil {
			return models.NewInternalError(err)
		}
		for _, v := range votes {
			mine[v.PollID] = v.OptionID
		}
	}

	for i := range polls {
		polls[i].TotalVotes = 0
		for j := range polls[i].Options {
			n := byOption[polls[i].Options[j].ID]
			polls[i].Options[j].VoteCount = n
			polls[i].TotalVotes += n
		}
		if opt, ok := mine[polls[i].ID]; ok {
			polls[i].MyOptionID = &opt
		}
	}
	return nil
}

// Vote records the user's choice. A second vote on the same poll replaces the first
// through the (poll_id, user_id) conflict key.
func (r *pollRepository) Vote(ctx context.Context, pollID, userID, optionID uint) error {
	var opt models.PollOption
	err := r.db.WithContext(ctx).Where("id = ? AND poll_id = ?", optionID, pollID).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewValidationError("Option does not belong to this poll")
	}
	if err != nil {
		return models.NewInternalError(err)
	}

	vote := models.PollVote{PollID: pollID, UserID: userID, OptionID: optionID}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "poll_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"option_id":  optionID,
			"updated_at": time.Now(),
		}),
	}).Create(&vote).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *pollRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("poll_id = ?", id).Delete(&models.PollVote{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Where("poll_id = ?", id).Delete(&models.PollOption{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		res := tx.Delete(&models.Poll{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Poll", id)
		}
		return nil
	})
}
