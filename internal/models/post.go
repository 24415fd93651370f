package models

import "time"

// Post is a feed post. AuraCount and CommentCount are cache columns maintained
// in the same transaction as the rows they count.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Author       *Profile  `gorm:"foreignKey:UserID" json:"author,omitempty"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	ImageURLs    []string  `gorm:"type:text;serializer:json" json:"image_urls"`
	VideoURL     string    `json:"video_url,omitempty"`
	Hashtags     []string  `gorm:"type:text;serializer:json" json:"hashtags"`
	AuraCount    int       `gorm:"not null;default:0" json:"aura_count"`
	CommentCount int       `gorm:"not null;default:0" json:"comment_count"`
	Liked        bool      `gorm:"-" json:"liked"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PostAura is one like of a post by a user.
type PostAura struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_aura_post_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_aura_post_user;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a reply to a post, optionally threaded under another comment.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Author    *Profile  `gorm:"foreignKey:UserID" json:"author,omitempty"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SavedCollection groups saved posts under a user-chosen name.
type SavedCollection struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Name      string    `gorm:"size:60;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedPost bookmarks a post; CollectionID nil means unfiled.
type SavedPost struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_saved_user_post" json:"user_id"`
	PostID       uint      `gorm:"not null;uniqueIndex:idx_saved_user_post" json:"post_id"`
	Post         *Post     `gorm:"foreignKey:PostID" json:"post,omitempty"`
	CollectionID *uint     `gorm:"index" json:"collection_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
