// Package notifications records, merges and serves per-user notification feeds.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/socialhub/backend/internal/apperr"
	"github.com/socialhub/backend/internal/logging"
	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/presence"
	"github.com/socialhub/backend/internal/repositories"
)

// Emitter pushes live events to a user's channels.
type Emitter interface {
	Emit(ctx context.Context, userID, event string, payload any) int
}

// variant describes how one notification type is stored.
type variant struct {
	// mergeable types keep at most one row per (type, typeId, userId).
	mergeable bool
}

var variants = map[models.NotificationType]variant{
	models.NotificationRequest:     {mergeable: true},
	models.NotificationPostLike:    {mergeable: true},
	models.NotificationPostComment: {mergeable: false},
	models.NotificationCommentLike: {mergeable: true},
	models.NotificationReply:       {mergeable: false},
	models.NotificationReplyLike:   {mergeable: true},
}

// Mergeable reports whether repeated events of kind update a single row.
func Mergeable(kind models.NotificationType) bool {
	return variants[kind].mergeable
}

// Draft is a notification about to be recorded.
type Draft struct {
	UserID  string
	Type    models.NotificationType
	TypeID  string
	Message string
	Sender  string
}

// Service owns notification writes and the live events that accompany them.
type Service struct {
	store   repositories.NotificationRepository
	emitter Emitter
	now     func() time.Time
}

// NewService constructs a Service. emitter may be nil.
func NewService(store repositories.NotificationRepository, emitter Emitter) *Service {
	return &Service{
		store:   store,
		emitter: emitter,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record stores the draft, merging into an existing row for mergeable types.
func (s *Service) Record(ctx context.Context, draft Draft) (models.Notification, error) {
	v, ok := variants[draft.Type]
	if !ok {
		return models.Notification{}, apperr.Invalid("unknown notification type %q", draft.Type)
	}
	if draft.UserID == "" || draft.TypeID == "" {
		return models.Notification{}, apperr.Invalid("notification owner and subject are required")
	}

	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    draft.UserID,
		Type:      draft.Type,
		TypeID:    draft.TypeID,
		Message:   draft.Message,
		Sender:    draft.Sender,
		CreatedAt: s.now(),
	}

	var (
		stored models.Notification
		err    error
	)
	if v.mergeable {
		stored, err = s.store.Upsert(ctx, n)
	} else {
		stored, err = s.store.Insert(ctx, n)
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Notification{}, apperr.NotFound("notification owner or subject not found")
	}
	if err != nil {
		return models.Notification{}, apperr.Internal("store notification", err)
	}

	logging.FromContext(ctx).Debug("notification recorded",
		"notification_id", stored.ID,
		"type", stored.Type,
		"merged", stored.ID != n.ID,
	)
	return stored, nil
}

// Notify records the draft and pushes it to the owner's live channels.
func (s *Service) Notify(ctx context.Context, draft Draft) (models.Notification, error) {
	n, err := s.Record(ctx, draft)
	if err != nil {
		return models.Notification{}, err
	}
	s.emit(ctx, n.UserID, presence.EventNotificationUpdate, n)
	return n, nil
}

// Existing returns the notification stored under the key, if any.
func (s *Service) Existing(ctx context.Context, userID string, kind models.NotificationType, typeID string) (models.Notification, bool, error) {
	n, err := s.store.FindByKey(ctx, userID, kind, typeID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Notification{}, false, nil
	}
	if err != nil {
		return models.Notification{}, false, apperr.Internal("load notification", err)
	}
	return n, true, nil
}

// Remove deletes the notifications stored under the key.
func (s *Service) Remove(ctx context.Context, userID string, kind models.NotificationType, typeID string) error {
	if err := s.store.DeleteByKey(ctx, userID, kind, typeID); err != nil {
		return apperr.Internal("delete notification", err)
	}
	return nil
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Notification, error) {
	list, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list notifications", err)
	}
	return list, nil
}

// MarkRead flags one notification as read. It fails with Unauthorized when
// the notification belongs to another account.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (models.Notification, error) {
	existing, err := s.store.FindByID(ctx, notificationID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Notification{}, apperr.NotFound("notification not found")
	}
	if err != nil {
		return models.Notification{}, apperr.Internal("load notification", err)
	}
	if existing.UserID != userID {
		return models.Notification{}, apperr.Unauthorized("notification belongs to another account")
	}

	n, err := s.store.MarkRead(ctx, notificationID, userID, s.now())
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Notification{}, apperr.NotFound("notification not found")
	}
	if err != nil {
		return models.Notification{}, apperr.Internal("mark notification read", err)
	}

	s.emit(ctx, userID, presence.EventNotificationUpdate, n)
	return n, nil
}

// MarkAllRead flags every notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) ([]models.Notification, error) {
	list, err := s.store.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return nil, apperr.Internal("mark notifications read", err)
	}
	s.emit(ctx, userID, presence.EventNotificationMarkRead, list)
	return list, nil
}

// ClearAll deletes the user's notification feed.
func (s *Service) ClearAll(ctx context.Context, userID string) error {
	if err := s.store.DeleteAllForUser(ctx, userID); err != nil {
		return apperr.Internal("clear notifications", err)
	}
	s.emit(ctx, userID, presence.EventNotificationMarkRead, []models.Notification{})
	return nil
}

func (s *Service) emit(ctx context.Context, userID, event string, payload any) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, userID, event, payload)
}
