package repositories

import (
	"context"
	"time"

	"github.com/socialhub/backend/internal/models"
)

// NotificationRepository persists notification feed entries.
type NotificationRepository interface {
	// Upsert inserts the notification or, when a row with the same
	// (type, typeId, userId) exists, refreshes its message, sender and read flag.
	Upsert(ctx context.Context, notification models.Notification) (models.Notification, error)
	Insert(ctx context.Context, notification models.Notification) (models.Notification, error)
	FindByID(ctx context.Context, id string) (models.Notification, error)
	FindByKey(ctx context.Context, userID string, kind models.NotificationType, typeID string) (models.Notification, error)
	DeleteByKey(ctx context.Context, userID string, kind models.NotificationType, typeID string) error
	// ListForUser returns the user's notifications, newest first.
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) ([]models.Notification, error)
	DeleteAllForUser(ctx context.Context, userID string) error
}
