package handlers

import (
	"context"
	"time"

	"github.com/socialhub/backend/internal/auth"
	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/requests"
)

// UserStore captures the persistence operations required by the auth and profile handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// SessionManager issues, resolves and revokes cookie sessions.
type SessionManager interface {
	Issue(ctx context.Context, user models.User) (auth.Session, error)
	Resolve(ctx context.Context, id string) (auth.Session, error)
	Revoke(ctx context.Context, id string)
	TTL() time.Duration
}

// FriendService runs the friend-request workflow.
type FriendService interface {
	Send(ctx context.Context, senderID, receiverID string) (requests.SendResult, error)
	Accept(ctx context.Context, senderID, sessionUserID string) (models.FriendRequest, error)
	Reject(ctx context.Context, senderID, sessionUserID string) (models.FriendRequest, error)
	Cancel(ctx context.Context, receiverID, sessionUserID string) error
	Unfriend(ctx context.Context, userID, friendID string) error
	ListPending(ctx context.Context, userID string) ([]models.PendingRequest, error)
	Friends(ctx context.Context, userID string) ([]models.FriendWithRelation, error)
}

// NotificationService serves a user's notification feed.
type NotificationService interface {
	List(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) ([]models.Notification, error)
	ClearAll(ctx context.Context, userID string) error
}

// RelationComputer derives the relation between two accounts.
type RelationComputer interface {
	Compute(ctx context.Context, subjectID, viewerID string) (models.RelationView, error)
}
