package models

import "time"

// MenuSource records where a day's menu came from.
type MenuSource string

const (
	MenuSourceAI       MenuSource = "ai"
	MenuSourceFallback MenuSource = "fallback"
	MenuSourceManual   MenuSource = "manual"
)

// MenuDateLayout is the format of MessMenu.Date.
const MenuDateLayout = "2006-01-02"

// MessMenu is the dining hall menu for one date.
type MessMenu struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Date      string     `gorm:"size:10;not null;uniqueIndex" json:"date"`
	Breakfast []string   `gorm:"type:text;serializer:json" json:"breakfast"`
	Lunch     []string   `gorm:"type:text;serializer:json" json:"lunch"`
	Snacks    []string   `gorm:"type:text;serializer:json" json:"snacks"`
	Dinner    []string   `gorm:"type:text;serializer:json" json:"dinner"`
	Source    MenuSource `gorm:"type:varchar(20);not null;default:'manual'" json:"source"`
	ImageURL  string     `json:"image_url,omitempty"`
	UpdatedBy *uint      `json:"updated_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
