package models

import "time"

// Confession is an anonymous board entry. AuthorID is kept for moderation and
// rate limiting and never leaves the service.
type Confession struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AuthorID     uint      `gorm:"not null;index" json:"-"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	AuraCount    int       `gorm:"not null;default:0" json:"aura_count"`
	CommentCount int       `gorm:"not null;default:0" json:"comment_count"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// ConfessionAura is one like of a confession.
type ConfessionAura struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ConfessionID uint      `gorm:"not null;uniqueIndex:idx_confession_aura_user" json:"confession_id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_confession_aura_user" json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConfessionComment is an anonymous reply to a confession.
type ConfessionComment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ConfessionID uint      `gorm:"not null;index" json:"confession_id"`
	AuthorID     uint      `gorm:"not null" json:"-"`
	ParentID     *uint     `json:"parent_id,omitempty"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConfessionDTO is the read shape of a confession. It has no author field.
type ConfessionDTO struct {
	ID           uint      `json:"id"`
	Content      string    `json:"content"`
	AuraCount    int       `json:"aura_count"`
	CommentCount int       `json:"comment_count"`
	Liked        bool      `json:"liked"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConfessionCommentDTO is the read shape of a confession comment.
type ConfessionCommentDTO struct {
	ID        uint      `json:"id"`
	ParentID  *uint     `json:"parent_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ToDTO strips the author.
func (c Confession) ToDTO(liked bool) ConfessionDTO {
	return ConfessionDTO{
		ID:           c.ID,
		Content:      c.Content,
		AuraCount:    c.AuraCount,
		CommentCount: c.CommentCount,
		Liked:        liked,
		CreatedAt:    c.CreatedAt,
	}
}

// ToDTO strips the author.
func (c ConfessionComment) ToDTO() ConfessionCommentDTO {
	return ConfessionCommentDTO{
		ID:        c.ID,
		ParentID:  c.ParentID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}
