package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rktik/cortex/internal/domain"
)

// NotificationRepository handles notification persistence.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *NotificationRepository: repository instance bound to db.
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - notif: notification record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *NotificationRepository) Create(ctx context.Context, notif *domain.Notification) error {
	return r.db.WithContext(ctx).Create(notif).Error
}

// ListUnread retrieves a recipient's unread notifications, most recently
// modified first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - recipientID: persona the notifications are addressed to.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Notification: unread notifications.
//   - error: non-nil if the query fails.
func (r *NotificationRepository) ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	var notifs []domain.Notification
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND unread = ?", recipientID, true).
		Order("modified DESC").
		Limit(limit).
		Find(&notifs).Error; err != nil {
		return nil, err
	}
	return notifs, nil
}

// MarkRead clears the unread flag on a notification.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: notification ID.
// Returns:
//   - error: non-nil if the update fails.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"unread": false, "modified": time.Now().UTC()}).Error
}

// CountUnread counts a recipient's unread notifications.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - recipientID: persona the notifications are addressed to.
// Returns:
//   - int64: number of unread notifications.
//   - error: non-nil if the query fails.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("recipient_id = ? AND unread = ?", recipientID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
