package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
)

const notificationColumns = `id, recipient_id, title, message, priority, trigger_kind, related_entity_type, related_entity_id, is_read, created_at`

// NotificationRepository persists in-app notifications. IDs are ULIDs so the
// inbox sorts by id in creation order.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts an unread notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.ID == "" {
		n.ID = ulid.MustNew(ulid.Timestamp(n.CreatedAt), ulid.DefaultEntropy()).String()
	}
	n.IsRead = false
	const query = `INSERT INTO notifications (` + notificationColumns + `)
VALUES (:id, :recipient_id, :title, :message, :priority, :trigger_kind, :related_entity_type, :related_entity_id, :is_read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns a page of a recipient's notifications, newest first, and the total.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := "recipient_id = $1"
	if filter.UnreadOnly {
		where += " AND is_read = FALSE"
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications WHERE "+where, filter.RecipientID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE %s ORDER BY id DESC LIMIT $2 OFFSET $3", notificationColumns, where)
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, filter.RecipientID, size, (page-1)*size); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

// MarkRead flags a recipient's notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected(res)
}

// CountUnread returns the number of unread notifications for a recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`, recipientID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
