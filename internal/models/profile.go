// Package models contains the campus network's persisted entities and API error types.
package models

import "time"

// Role is the site-wide role of a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile is a user account and its public profile. Username stays nil until onboarding.
type Profile struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Email         string     `gorm:"size:255;not null;uniqueIndex" json:"-"`
	PasswordHash  string     `gorm:"not null" json:"-"`
	Username      *string    `gorm:"size:30;uniqueIndex" json:"username"`
	DisplayName   string     `gorm:"size:100" json:"display_name"`
	AvatarURL     string     `json:"avatar_url"`
	Bio           string     `gorm:"type:text" json:"bio"`
	Role          Role       `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	Aura          int        `gorm:"not null;default:0;index" json:"aura"`
	IsVerified    bool       `gorm:"not null;default:false" json:"is_verified"`
	VerifiedUntil *time.Time `json:"verified_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Profile) TableName() string {
	return "profiles"
}

// Onboarded reports whether both username and display name are set.
func (p *Profile) Onboarded() bool {
	return p != nil && p.Username != nil && *p.Username != "" && p.DisplayName != ""
}

// Handle returns the username or an empty string.
func (p *Profile) Handle() string {
	if p == nil || p.Username == nil {
		return ""
	}
	return *p.Username
}

// VerifiedAt reports whether the verified badge is active at t. A nil expiry never lapses.
func (p *Profile) VerifiedAt(t time.Time) bool {
	if p == nil || !p.IsVerified {
		return false
	}
	return p.VerifiedUntil == nil || t.Before(*p.VerifiedUntil)
}
