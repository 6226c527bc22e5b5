package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/socialhub/backend/internal/db"
	"github.com/socialhub/backend/internal/models"
)

const (
	notificationColumns       = `id, user_id, type, type_id, message, sender, read, created_at, updated_at`
	notificationInsertColumns = `id, user_id, type, type_id, request_id, message, sender, read, created_at, updated_at`
)

// requestRef is the foreign key a request notification carries so that it is
// written only while its request exists and is deleted along with it.
func requestRef(n models.Notification) *string {
	if n.Type != models.NotificationRequest {
		return nil
	}
	id := n.TypeID
	return &id
}

// PostgresNotificationRepository provides PostgreSQL-backed persistence for notifications.
type PostgresNotificationRepository struct {
	pool db.Pool
}

// NewPostgresNotificationRepository constructs a notification repository backed by PostgreSQL.
func NewPostgresNotificationRepository(pool db.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

// Upsert merges on the partial unique index over (type, type_id, user_id).
func (r *PostgresNotificationRepository) Upsert(ctx context.Context, n models.Notification) (models.Notification, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Notification{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	stored, err := scanNotification(conn.QueryRow(ctx, `
        INSERT INTO notifications (`+notificationInsertColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $8)
        ON CONFLICT (type, type_id, user_id)
            WHERE type IN ('request', 'post-like', 'comment-like', 'reply-like')
        DO UPDATE SET message = EXCLUDED.message,
                      sender = EXCLUDED.sender,
                      request_id = EXCLUDED.request_id,
                      read = FALSE,
                      updated_at = EXCLUDED.updated_at
        RETURNING `+notificationColumns,
		n.ID, n.UserID, string(n.Type), n.TypeID, requestRef(n), n.Message, n.Sender, n.CreatedAt))
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return models.Notification{}, ErrNotFound
		}
		return models.Notification{}, fmt.Errorf("upsert notification: %w", err)
	}

	return stored, nil
}

// Insert always writes a new notification row.
func (r *PostgresNotificationRepository) Insert(ctx context.Context, n models.Notification) (models.Notification, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Notification{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	stored, err := scanNotification(conn.QueryRow(ctx, `
        INSERT INTO notifications (`+notificationInsertColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $8)
        RETURNING `+notificationColumns,
		n.ID, n.UserID, string(n.Type), n.TypeID, requestRef(n), n.Message, n.Sender, n.CreatedAt))
	if err != nil {
		return models.Notification{}, translateWriteError(err, "insert notification")
	}

	return stored, nil
}

// FindByID loads a notification by identifier.
func (r *PostgresNotificationRepository) FindByID(ctx context.Context, id string) (models.Notification, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Notification{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	n, err := scanNotification(conn.QueryRow(ctx, `
        SELECT `+notificationColumns+`
        FROM notifications
        WHERE id = $1
    `, id))
	if err != nil {
		return models.Notification{}, wrapNoRows(err, "select notification")
	}

	return n, nil
}

// FindByKey loads the most recent notification for the (user, type, typeId) triple.
func (r *PostgresNotificationRepository) FindByKey(ctx context.Context, userID string, kind models.NotificationType, typeID string) (models.Notification, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Notification{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	n, err := scanNotification(conn.QueryRow(ctx, `
        SELECT `+notificationColumns+`
        FROM notifications
        WHERE user_id = $1 AND type = $2 AND type_id = $3
        ORDER BY created_at DESC
        LIMIT 1
    `, userID, string(kind), typeID))
	if err != nil {
		return models.Notification{}, wrapNoRows(err, "select notification by key")
	}

	return n, nil
}

// DeleteByKey removes every notification for the triple. Deleting nothing is not an error.
func (r *PostgresNotificationRepository) DeleteByKey(ctx context.Context, userID string, kind models.NotificationType, typeID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM notifications
        WHERE user_id = $1 AND type = $2 AND type_id = $3
    `, userID, string(kind), typeID); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	return nil
}

// ListForUser returns the user's notifications, newest first.
func (r *PostgresNotificationRepository) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+notificationColumns+`
        FROM notifications
        WHERE user_id = $1
        ORDER BY updated_at DESC, id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	return collectNotifications(rows)
}

// MarkRead flags a single notification owned by userID as read.
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) (models.Notification, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Notification{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	n, err := scanNotification(conn.QueryRow(ctx, `
        UPDATE notifications
        SET read = TRUE, updated_at = $3
        WHERE id = $1 AND user_id = $2
        RETURNING `+notificationColumns,
		id, userID, at))
	if err != nil {
		return models.Notification{}, wrapNoRows(err, "mark notification read")
	}

	return n, nil
}

// MarkAllRead flags every unread notification of the user and returns the full list.
func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) ([]models.Notification, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        UPDATE notifications
        SET read = TRUE, updated_at = $2
        WHERE user_id = $1 AND read = FALSE
    `, userID, at); err != nil {
		return nil, fmt.Errorf("mark notifications read: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT `+notificationColumns+`
        FROM notifications
        WHERE user_id = $1
        ORDER BY updated_at DESC, id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	return collectNotifications(rows)
}

// DeleteAllForUser clears the user's notification feed.
func (r *PostgresNotificationRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}

	return nil
}

func scanNotification(row pgx.Row) (models.Notification, error) {
	var (
		n    models.Notification
		kind string
	)
	if err := row.Scan(&n.ID, &n.UserID, &kind, &n.TypeID, &n.Message, &n.Sender, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return models.Notification{}, err
	}
	n.Type = models.NotificationType(kind)
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}

func collectNotifications(rows pgx.Rows) ([]models.Notification, error) {
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

var _ NotificationRepository = (*PostgresNotificationRepository)(nil)
