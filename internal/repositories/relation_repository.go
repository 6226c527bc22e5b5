package repositories

import (
	"context"
	"time"

	"github.com/socialhub/backend/internal/models"
)

// RelationRepository persists friendship edges and friend requests. Every state
// transition is a conditional write so concurrent callers cannot both succeed.
type RelationRepository interface {
	// FriendIDs lists the user's friends in the order the friendships were created.
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	AreFriends(ctx context.Context, userID, otherID string) (bool, error)

	// FindRequest returns the request row for the ordered pair in any status.
	FindRequest(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error)
	CreateRequest(ctx context.Context, request models.FriendRequest) error
	// TransitionRequest moves a request from one status to another, failing with
	// ErrNotFound when the row is no longer in the expected status.
	TransitionRequest(ctx context.Context, requestID, from, to string, at time.Time) (models.FriendRequest, error)
	// AcceptRequest flips the pending request to accepted and records both
	// friendship edges in one transaction.
	AcceptRequest(ctx context.Context, senderID, receiverID string, at time.Time) (models.FriendRequest, error)
	// DeletePendingRequest removes the request only while it is still pending.
	DeletePendingRequest(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error)
	ListPendingForReceiver(ctx context.Context, receiverID string) ([]models.FriendRequest, error)
	// RemoveFriendship deletes both edges and every request row between the pair,
	// returning the deleted requests.
	RemoveFriendship(ctx context.Context, userID, friendID string) ([]models.FriendRequest, error)
}
