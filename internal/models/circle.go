package models

import "time"

// CircleRole defines a member's role in a circle.
type CircleRole string

const (
	// CircleRoleAdmin can manage members, roles and delete the circle.
	CircleRoleAdmin CircleRole = "admin"
	// CircleRoleModerator can review join requests.
	CircleRoleModerator CircleRole = "moderator"
	// CircleRoleMember is the default role.
	CircleRoleMember CircleRole = "member"
)

// Valid reports whether r is a known circle role.
func (r CircleRole) Valid() bool {
	switch r {
	case CircleRoleAdmin, CircleRoleModerator, CircleRoleMember:
		return true
	}
	return false
}

// CanReview reports whether r may approve or reject join requests.
func (r CircleRole) CanReview() bool {
	return r == CircleRoleAdmin || r == CircleRoleModerator
}

// Circle is a community. Private circles admit members only through approved join requests.
type Circle struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Slug        string    `gorm:"size:40;not null;uniqueIndex" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	AvatarURL   string    `json:"avatar_url"`
	IsPrivate   bool      `gorm:"not null;default:false" json:"is_private"`
	CreatedBy   uint      `gorm:"not null;index" json:"created_by"`
	MemberCount int64     `gorm:"-" json:"member_count"`
	MyRole      string    `gorm:"-" json:"my_role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CircleMember maps users to circles and tracks role.
type CircleMember struct {
	CircleID  uint       `gorm:"primaryKey;autoIncrement:false" json:"circle_id"`
	UserID    uint       `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Profile   *Profile   `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	Role      CircleRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CirclePost is a post scoped to one circle.
type CirclePost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CircleID  uint      `gorm:"not null;index" json:"circle_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	Author    *Profile  `gorm:"foreignKey:UserID" json:"author,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ImageURLs []string  `gorm:"type:text;serializer:json" json:"image_urls"`
	CreatedAt time.Time `json:"created_at"`
}

// CircleMessage is a chat line in a circle.
type CircleMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CircleID  uint      `gorm:"not null;index" json:"circle_id"`
	SenderID  uint      `gorm:"not null" json:"sender_id"`
	Sender    *Profile  `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// JoinRequestStatus defines lifecycle states for circle join requests.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// CircleJoinRequest asks to join a private circle. One row per (circle, user); a
// rejected user re-requesting moves the row back to pending.
type CircleJoinRequest struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CircleID   uint              `gorm:"not null;uniqueIndex:idx_join_request_circle_user" json:"circle_id"`
	UserID     uint              `gorm:"not null;uniqueIndex:idx_join_request_circle_user" json:"user_id"`
	Profile    *Profile          `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	Status     JoinRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewedBy *uint             `json:"reviewed_by,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Notification types.
const (
	NotificationJoinRequest  = "circle_join_request"
	NotificationJoinApproved = "circle_join_approved"
	NotificationPostAura     = "post_aura"
	NotificationPostComment  = "post_comment"
)

// Notification is an in-app notice for one recipient.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecipientID uint      `gorm:"not null;index" json:"recipient_id"`
	ActorID     *uint     `json:"actor_id,omitempty"`
	Type        string    `gorm:"size:40;not null" json:"type"`
	EntityID    uint      `json:"entity_id"`
	Message     string    `gorm:"type:text" json:"message"`
	IsRead      bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
