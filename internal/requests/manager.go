// Package requests implements the friend-request state machine and the
// friendship changes that follow from it.
package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/socialhub/backend/internal/apperr"
	"github.com/socialhub/backend/internal/logging"
	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/notifications"
	"github.com/socialhub/backend/internal/presence"
	"github.com/socialhub/backend/internal/repositories"
)

// Subjects relationship events are published on.
const (
	SubjectRequestSent      = "social.request.sent"
	SubjectRequestAccepted  = "social.request.accepted"
	SubjectRequestRejected  = "social.request.rejected"
	SubjectRequestCancelled = "social.request.cancelled"
	SubjectFriendshipRemove = "social.friendship.removed"
)

// UserFinder loads accounts.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindManyByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// RelationComputer derives relation views.
type RelationComputer interface {
	Compute(ctx context.Context, subjectID, viewerID string) (models.RelationView, error)
	FriendsWithRelations(ctx context.Context, userID string) ([]models.FriendWithRelation, error)
}

// Notifier records request notifications.
type Notifier interface {
	Notify(ctx context.Context, draft notifications.Draft) (models.Notification, error)
	Existing(ctx context.Context, userID string, kind models.NotificationType, typeID string) (models.Notification, bool, error)
	Remove(ctx context.Context, userID string, kind models.NotificationType, typeID string) error
}

// Emitter pushes live events to a user's channels.
type Emitter interface {
	Emit(ctx context.Context, userID, event string, payload any) int
}

// Publisher forwards relationship events to other services.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Dependencies aggregates the collaborators of a Manager.
type Dependencies struct {
	Users         UserFinder
	Relations     repositories.RelationRepository
	Engine        RelationComputer
	Notifications Notifier
	Emitter       Emitter
	// Publisher is optional.
	Publisher Publisher
}

// Manager runs friend-request transitions. Every transition relies on the
// store's conditional writes, so concurrent calls for the same pair cannot
// both succeed.
type Manager struct {
	deps Dependencies
	now  func() time.Time
}

// NewManager constructs a Manager.
func NewManager(deps Dependencies) *Manager {
	return &Manager{
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SendResult is the outcome of a send.
type SendResult struct {
	Request      models.FriendRequest `json:"request"`
	Notification models.Notification  `json:"notification"`
}

// RelationUpdate is the live payload describing the other party of a change.
type RelationUpdate struct {
	User     models.UserSummary          `json:"user"`
	Relation models.RelationView         `json:"relation"`
	Request  *models.FriendRequest       `json:"request,omitempty"`
	Friends  []models.FriendWithRelation `json:"friends,omitzero"`
}

// Event is the payload published for every relationship change.
type Event struct {
	ActorID    string    `json:"actorId"`
	TargetID   string    `json:"targetId"`
	RequestID  string    `json:"requestId,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Send creates a pending request from senderID to receiverID. A request that
// is already pending is returned unchanged; a rejected one is resent.
func (m *Manager) Send(ctx context.Context, senderID, receiverID string) (SendResult, error) {
	ctx, span := logging.StartSpan(ctx, "requests.send")
	defer span.End()

	if senderID == receiverID {
		return SendResult{}, apperr.Conflict("cannot send a friend request to yourself")
	}

	sender, receiver, err := m.loadPair(ctx, senderID, receiverID)
	if err != nil {
		return SendResult{}, err
	}

	friends, err := m.deps.Relations.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		span.Fail(err)
		return SendResult{}, apperr.Internal("check friendship", err)
	}
	if friends {
		return SendResult{}, apperr.Conflict("you are already friends with %s", receiver.Username)
	}

	reverse, err := m.deps.Relations.FindRequest(ctx, receiverID, senderID)
	switch {
	case err == nil && reverse.Status == models.RequestPending:
		return SendResult{}, apperr.Conflict("%s already sent you a friend request", receiver.Username)
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		span.Fail(err)
		return SendResult{}, apperr.Internal("load friend request", err)
	}

	request, err := m.openRequest(ctx, senderID, receiverID)
	if err != nil {
		span.Fail(err)
		return SendResult{}, err
	}

	if request.idempotent {
		existing, found, err := m.deps.Notifications.Existing(ctx, receiverID, models.NotificationRequest, request.ID)
		if err != nil {
			return SendResult{}, err
		}
		if found {
			return SendResult{Request: request.FriendRequest, Notification: existing}, nil
		}
	}

	n, err := m.deps.Notifications.Notify(ctx, notifications.Draft{
		UserID:  receiverID,
		Type:    models.NotificationRequest,
		TypeID:  request.ID,
		Message: fmt.Sprintf("%s sent you a friend request", sender.Username),
		Sender:  sender.Username,
	})
	if apperr.Is(err, apperr.KindNotFound) {
		// The request row went away between the write and the notification.
		return SendResult{}, apperr.Conflict("friend request to %s was withdrawn", receiver.Username)
	}
	if err != nil {
		span.Fail(err)
		return SendResult{}, err
	}

	req := request.FriendRequest
	m.emitRelation(ctx, receiverID, presence.EventRequestReceived, sender, RelationUpdate{Request: &req})
	m.emitRelation(ctx, senderID, presence.EventRequestSent, receiver, RelationUpdate{Request: &req})
	m.publish(ctx, SubjectRequestSent, Event{ActorID: senderID, TargetID: receiverID, RequestID: req.ID, Status: req.Status})

	logging.FromContext(ctx).Info("friend request sent", "request_id", req.ID, "sender_id", senderID, "receiver_id", receiverID)
	return SendResult{Request: req, Notification: n}, nil
}

type openedRequest struct {
	models.FriendRequest
	idempotent bool
}

// openRequest returns the pending row for the pair, creating it or flipping
// an old row back to pending as needed.
func (m *Manager) openRequest(ctx context.Context, senderID, receiverID string) (openedRequest, error) {
	existing, err := m.deps.Relations.FindRequest(ctx, senderID, receiverID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		now := m.now()
		request := models.FriendRequest{
			ID:         uuid.NewString(),
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     models.RequestPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err := m.deps.Relations.CreateRequest(ctx, request)
		if errors.Is(err, repositories.ErrConflict) {
			// A concurrent send created the row first.
			raced, findErr := m.deps.Relations.FindRequest(ctx, senderID, receiverID)
			if findErr == nil && raced.Status == models.RequestPending {
				return openedRequest{FriendRequest: raced, idempotent: true}, nil
			}
			return openedRequest{}, apperr.Conflict("friend request changed concurrently")
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return openedRequest{}, apperr.NotFound("user not found")
		}
		if err != nil {
			return openedRequest{}, apperr.Internal("create friend request", err)
		}
		return openedRequest{FriendRequest: request}, nil
	case err != nil:
		return openedRequest{}, apperr.Internal("load friend request", err)
	case existing.Status == models.RequestPending:
		return openedRequest{FriendRequest: existing, idempotent: true}, nil
	}

	// Rejected, or accepted for a friendship that no longer exists.
	reopened, err := m.deps.Relations.TransitionRequest(ctx, existing.ID, existing.Status, models.RequestPending, m.now())
	if errors.Is(err, repositories.ErrNotFound) {
		return openedRequest{}, apperr.Conflict("friend request changed concurrently")
	}
	if err != nil {
		return openedRequest{}, apperr.Internal("reopen friend request", err)
	}
	return openedRequest{FriendRequest: reopened}, nil
}

// Accept accepts the pending request from senderID to the session user and
// makes the two accounts friends.
func (m *Manager) Accept(ctx context.Context, senderID, sessionUserID string) (models.FriendRequest, error) {
	ctx, span := logging.StartSpan(ctx, "requests.accept")
	defer span.End()

	if senderID == sessionUserID {
		return models.FriendRequest{}, apperr.Conflict("cannot accept your own id")
	}

	sender, user, err := m.loadPair(ctx, senderID, sessionUserID)
	if err != nil {
		return models.FriendRequest{}, err
	}

	request, err := m.deps.Relations.AcceptRequest(ctx, senderID, sessionUserID, m.now())
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return models.FriendRequest{}, apperr.NotFound("no pending friend request from %s", sender.Username)
	case errors.Is(err, repositories.ErrConflict):
		return models.FriendRequest{}, apperr.Conflict("you are already friends with %s", sender.Username)
	case err != nil:
		span.Fail(err)
		return models.FriendRequest{}, apperr.Internal("accept friend request", err)
	}

	if _, err := m.deps.Notifications.Notify(ctx, notifications.Draft{
		UserID:  senderID,
		Type:    models.NotificationRequest,
		TypeID:  request.ID,
		Message: fmt.Sprintf("%s accepted your friend request", user.Username),
		Sender:  user.Username,
	}); err != nil {
		// The friendship is already committed.
		logging.FromContext(ctx).Warn("notify accepted request", "request_id", request.ID, "sender_id", senderID, "error", err)
	}

	m.emitRelation(ctx, sessionUserID, presence.EventRequestAcceptedUser, sender, RelationUpdate{Request: &request, Friends: m.friendsFor(ctx, sessionUserID)})
	m.emitRelation(ctx, senderID, presence.EventRequestAcceptedSender, user, RelationUpdate{Request: &request, Friends: m.friendsFor(ctx, senderID)})
	m.publish(ctx, SubjectRequestAccepted, Event{ActorID: sessionUserID, TargetID: senderID, RequestID: request.ID, Status: request.Status})

	logging.FromContext(ctx).Info("friend request accepted", "request_id", request.ID, "sender_id", senderID, "receiver_id", sessionUserID)
	return request, nil
}

// Reject flips the pending request from senderID to the session user to rejected.
func (m *Manager) Reject(ctx context.Context, senderID, sessionUserID string) (models.FriendRequest, error) {
	ctx, span := logging.StartSpan(ctx, "requests.reject")
	defer span.End()

	if senderID == sessionUserID {
		return models.FriendRequest{}, apperr.Conflict("cannot reject your own id")
	}

	sender, user, err := m.loadPair(ctx, senderID, sessionUserID)
	if err != nil {
		return models.FriendRequest{}, err
	}

	existing, err := m.deps.Relations.FindRequest(ctx, senderID, sessionUserID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && existing.Status != models.RequestPending) {
		return models.FriendRequest{}, apperr.NotFound("no pending friend request from %s", sender.Username)
	}
	if err != nil {
		span.Fail(err)
		return models.FriendRequest{}, apperr.Internal("load friend request", err)
	}

	request, err := m.deps.Relations.TransitionRequest(ctx, existing.ID, models.RequestPending, models.RequestRejected, m.now())
	if errors.Is(err, repositories.ErrNotFound) {
		return models.FriendRequest{}, apperr.NotFound("no pending friend request from %s", sender.Username)
	}
	if err != nil {
		span.Fail(err)
		return models.FriendRequest{}, apperr.Internal("reject friend request", err)
	}

	m.emitRelation(ctx, sessionUserID, presence.EventRequestRejectedUser, sender, RelationUpdate{Request: &request})
	m.emitRelation(ctx, senderID, presence.EventRequestRejectedSender, user, RelationUpdate{Request: &request})
	m.publish(ctx, SubjectRequestRejected, Event{ActorID: sessionUserID, TargetID: senderID, RequestID: request.ID, Status: request.Status})

	return request, nil
}

// Cancel withdraws the session user's pending request to receiverID. The
// request row and the receiver's notification are both deleted.
func (m *Manager) Cancel(ctx context.Context, receiverID, sessionUserID string) error {
	ctx, span := logging.StartSpan(ctx, "requests.cancel")
	defer span.End()

	if receiverID == sessionUserID {
		return apperr.Conflict("cannot cancel a friend request to yourself")
	}

	user, receiver, err := m.loadPair(ctx, sessionUserID, receiverID)
	if err != nil {
		return err
	}

	existing, err := m.deps.Relations.FindRequest(ctx, sessionUserID, receiverID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && existing.Status != models.RequestPending) {
		return apperr.NotFound("no pending friend request to %s", receiver.Username)
	}
	if err != nil {
		span.Fail(err)
		return apperr.Internal("load friend request", err)
	}

	// The notification goes first so a failure never leaves it pointing at a
	// deleted request.
	if err := m.deps.Notifications.Remove(ctx, receiverID, models.NotificationRequest, existing.ID); err != nil {
		span.Fail(err)
		return err
	}

	request, err := m.deps.Relations.DeletePendingRequest(ctx, sessionUserID, receiverID)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound("no pending friend request to %s", receiver.Username)
	}
	if err != nil {
		span.Fail(err)
		return apperr.Internal("delete friend request", err)
	}

	m.emitRelation(ctx, sessionUserID, presence.EventRequestCancelledUser, receiver, RelationUpdate{})
	m.emitRelation(ctx, receiverID, presence.EventRequestCancelledReceiver, user, RelationUpdate{})
	m.emit(ctx, receiverID, presence.EventNotificationRemove, map[string]string{
		"type":   string(models.NotificationRequest),
		"typeId": request.ID,
	})
	m.publish(ctx, SubjectRequestCancelled, Event{ActorID: sessionUserID, TargetID: receiverID, RequestID: request.ID})

	return nil
}

// Unfriend removes the friendship between userID and friendID along with
// every request row between them.
func (m *Manager) Unfriend(ctx context.Context, userID, friendID string) error {
	ctx, span := logging.StartSpan(ctx, "requests.unfriend")
	defer span.End()

	if userID == friendID {
		return apperr.Conflict("cannot unfriend yourself")
	}

	user, friend, err := m.loadPair(ctx, userID, friendID)
	if err != nil {
		return err
	}

	removed, err := m.deps.Relations.RemoveFriendship(ctx, userID, friendID)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound("you are not friends with %s", friend.Username)
	}
	if err != nil {
		span.Fail(err)
		return apperr.Internal("remove friendship", err)
	}

	logger := logging.FromContext(ctx)
	for _, req := range removed {
		for _, owner := range []string{req.SenderID, req.ReceiverID} {
			if err := m.deps.Notifications.Remove(ctx, owner, models.NotificationRequest, req.ID); err != nil {
				logger.Error("remove request notification", "request_id", req.ID, "user_id", owner, "error", err)
			}
		}
	}

	m.emitRelation(ctx, userID, presence.EventUnfriendUser, friend, RelationUpdate{Friends: m.friendsFor(ctx, userID)})
	m.emitRelation(ctx, friendID, presence.EventUnfriendFriend, user, RelationUpdate{Friends: m.friendsFor(ctx, friendID)})
	m.publish(ctx, SubjectFriendshipRemove, Event{ActorID: userID, TargetID: friendID})

	logger.Info("friendship removed", "user_id", userID, "friend_id", friendID)
	return nil
}

// ListPending returns the pending requests addressed to userID, each with the
// sender's relation to userID.
func (m *Manager) ListPending(ctx context.Context, userID string) ([]models.PendingRequest, error) {
	ctx, span := logging.StartSpan(ctx, "requests.list_pending")
	defer span.End()

	if _, err := m.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	pending, err := m.deps.Relations.ListPendingForReceiver(ctx, userID)
	if err != nil {
		span.Fail(err)
		return nil, apperr.Internal("list friend requests", err)
	}

	senderIDs := make([]string, 0, len(pending))
	for _, req := range pending {
		senderIDs = append(senderIDs, req.SenderID)
	}
	senders, err := m.deps.Users.FindManyByIDs(ctx, senderIDs)
	if err != nil {
		span.Fail(err)
		return nil, apperr.Internal("load senders", err)
	}
	byID := make(map[string]models.User, len(senders))
	for _, u := range senders {
		byID[u.ID] = u
	}

	out := make([]models.PendingRequest, 0, len(pending))
	for _, req := range pending {
		sender, ok := byID[req.SenderID]
		if !ok {
			continue
		}
		view, err := m.deps.Engine.Compute(ctx, req.SenderID, userID)
		if err != nil {
			span.Fail(err)
			return nil, err
		}
		out = append(out, models.PendingRequest{Request: req, Sender: sender.Summary(), Relation: view})
	}

	return out, nil
}

// Friends lists userID's friends annotated with their relation to userID.
func (m *Manager) Friends(ctx context.Context, userID string) ([]models.FriendWithRelation, error) {
	return m.deps.Engine.FriendsWithRelations(ctx, userID)
}

func (m *Manager) loadUser(ctx context.Context, id string) (models.User, error) {
	user, err := m.deps.Users.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, apperr.Internal("load user", err)
	}
	return user, nil
}

func (m *Manager) loadPair(ctx context.Context, firstID, secondID string) (models.User, models.User, error) {
	first, err := m.loadUser(ctx, firstID)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	second, err := m.loadUser(ctx, secondID)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	return first, second, nil
}

// emitRelation recomputes other's relation to recipient and pushes it.
func (m *Manager) emitRelation(ctx context.Context, recipientID, event string, other models.User, update RelationUpdate) {
	if m.deps.Emitter == nil {
		return
	}
	view, err := m.deps.Engine.Compute(ctx, other.ID, recipientID)
	if err != nil {
		logging.FromContext(ctx).Warn("skip live relation update", "event", event, "user_id", recipientID, "error", err)
		return
	}
	update.User = other.Summary()
	update.Relation = view
	m.deps.Emitter.Emit(ctx, recipientID, event, update)
}

func (m *Manager) emit(ctx context.Context, userID, event string, payload any) {
	if m.deps.Emitter == nil {
		return
	}
	m.deps.Emitter.Emit(ctx, userID, event, payload)
}

func (m *Manager) friendsFor(ctx context.Context, userID string) []models.FriendWithRelation {
	friends, err := m.deps.Engine.FriendsWithRelations(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Warn("skip live friend list", "user_id", userID, "error", err)
		return nil
	}
	return friends
}

func (m *Manager) publish(ctx context.Context, subject string, event Event) {
	if m.deps.Publisher == nil {
		return
	}
	event.OccurredAt = m.now()
	if err := m.deps.Publisher.Publish(ctx, subject, event); err != nil {
		logging.FromContext(ctx).Warn("publish relationship event", "subject", subject, "error", err)
	}
}
