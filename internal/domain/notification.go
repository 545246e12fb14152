package domain

import "time"

// NotificationKind discriminates notification variants.
// Values include NotificationKindReply, NotificationKindMention, and
// NotificationKindPromotion.
type NotificationKind string

const (
	NotificationKindReply     NotificationKind = "reply"
	NotificationKindMention   NotificationKind = "mention"
	NotificationKindPromotion NotificationKind = "promotion"
)

// Notification represents an unread/read event addressed to a persona:
// a reply to their thought, a mention of their username, or a promotion
// of their thought to a movement blog.
type Notification struct {
	ID          string           `gorm:"type:text;primaryKey" json:"id"`
	Kind        NotificationKind `gorm:"type:text;not null" json:"kind"`
	RecipientID string           `gorm:"type:text;not null;index:idx_notifications_recipient" json:"recipient_id"`
	ActorID     string           `gorm:"type:text;not null" json:"actor_id"`
	ThoughtID   string           `gorm:"type:text;not null" json:"thought_id"`
	Unread      bool             `gorm:"not null;default:true" json:"unread"`
	Created     time.Time        `gorm:"not null" json:"created"`
	Modified    time.Time        `gorm:"not null;index:idx_notifications_modified" json:"modified"`
}

// TableName returns the database table name for Notification.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Notification) TableName() string {
	return "notifications"
}
