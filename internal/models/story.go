package models

import "time"

// StoryTTL is how long a story stays visible.
const StoryTTL = 24 * time.Hour

// Story is an ephemeral image or video.
type Story struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Author    *Profile  `gorm:"foreignKey:UserID" json:"author,omitempty"`
	MediaURL  string    `gorm:"not null" json:"media_url"`
	MediaType string    `gorm:"type:varchar(10);not null;default:'image'" json:"media_type"`
	Caption   string    `gorm:"type:text" json:"caption"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// StoryGroup is one author's active stories, oldest first.
type StoryGroup struct {
	Author  *Profile `json:"author"`
	Stories []Story  `json:"stories"`
}
