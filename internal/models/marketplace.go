package models

import "time"

// ListingStatus is the sale state of a marketplace listing.
type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingSold      ListingStatus = "sold"
)

// MarketplaceListing is an item offered by a student.
type MarketplaceListing struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	SellerID    uint          `gorm:"not null;index" json:"seller_id"`
	Seller      *Profile      `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	PriceCents  int64         `gorm:"not null;default:0" json:"price_cents"`
	Category    string        `gorm:"size:40;index" json:"category"`
	ImageURLs   []string      `gorm:"type:text;serializer:json" json:"image_urls"`
	Status      ListingStatus `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
