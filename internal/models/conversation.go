package models

import "time"

// Conversation is a direct-message thread between exactly two profiles, stored as
// an ordered pair so each pair has at most one row. LastMessage and LastMessageAt
// are advisory; previews and unread counts are derived from DirectMessage rows.
type Conversation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserLowID     uint       `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user_low_id"`
	UserHighID    uint       `gorm:"not null;uniqueIndex:idx_conversation_pair;index" json:"user_high_id"`
	LastMessage   string     `gorm:"type:text" json:"-"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OrderedPair returns (low, high) for two user ids.
func OrderedPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// Includes reports whether userID is a participant.
func (c *Conversation) Includes(userID uint) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID uint) uint {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}

// DirectMessage is one message in a conversation, optionally sharing a post.
type DirectMessage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index:idx_dm_conversation_created" json:"conversation_id"`
	SenderID       uint      `gorm:"not null" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	SharedPostID   *uint     `json:"shared_post_id,omitempty"`
	SharedPost     *Post     `gorm:"foreignKey:SharedPostID" json:"shared_post,omitempty"`
	IsRead         bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time `gorm:"index:idx_dm_conversation_created" json:"created_at"`
}

// ConversationSummary is a conversation as listed for one participant.
type ConversationSummary struct {
	Conversation
	OtherUser   *Profile       `json:"other_user,omitempty"`
	LastMessage *DirectMessage `json:"last_message,omitempty"`
	UnreadCount int64          `json:"unread_count"`
}
