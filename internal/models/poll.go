package models

import "time"

// Poll is a question with 2 to 10 options.
type Poll struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	CreatorID  uint         `gorm:"not null;index" json:"creator_id"`
	Creator    *Profile     `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Question   string       `gorm:"type:text;not null" json:"question"`
	Options    []PollOption `gorm:"foreignKey:PollID" json:"options"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	TotalVotes int64        `gorm:"-" json:"total_votes"`
	MyOptionID *uint        `gorm:"-" json:"my_option_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// PollOption is one choice of a poll.
type PollOption struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	PollID    uint   `gorm:"not null;index" json:"poll_id"`
	Text      string `gorm:"size:255;not null" json:"text"`
	Position  int    `gorm:"not null;default:0" json:"position"`
	VoteCount int64  `gorm:"-" json:"vote_count"`
}

// PollVote records a user's choice. The (poll_id, user_id) unique index makes
// re-voting an upsert.
type PollVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PollID    uint      `gorm:"not null;uniqueIndex:idx_poll_vote_user" json:"poll_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_poll_vote_user" json:"user_id"`
	OptionID  uint      `gorm:"not null;index" json:"option_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
