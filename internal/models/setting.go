package models

import "time"

// SiteSetting is a generic key/value row, e.g. feed_thumbnail_url.
type SiteSetting struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
