package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/socialhub/backend/internal/models"
)

// MemoryUserRepository implements UserRepository for tests and local development.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryUserRepository returns an empty in-memory user repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username {
			return ErrConflict
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (models.User, error) {
	return r.findFirst(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (models.User, error) {
	return r.findFirst(func(u models.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) FindManyByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return orderUsers(ids, r.users), nil
}

func (r *MemoryUserRepository) findFirst(match func(models.User) bool) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if match(user) {
			return user, nil
		}
	}
	return models.User{}, ErrNotFound
}

type requestPair struct {
	sender   string
	receiver string
}

// MemoryRelationRepository implements RelationRepository with a single mutex
// standing in for the row-level atomicity of the SQL store.
type MemoryRelationRepository struct {
	mu       sync.RWMutex
	friends  map[string][]string
	requests map[requestPair]models.FriendRequest
	notes    *MemoryNotificationRepository
}

// NewMemoryRelationRepository returns an empty in-memory relation repository.
func NewMemoryRelationRepository() *MemoryRelationRepository {
	return &MemoryRelationRepository{
		friends:  make(map[string][]string),
		requests: make(map[requestPair]models.FriendRequest),
	}
}

func (r *MemoryRelationRepository) FriendIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.friends[userID]...), nil
}

func (r *MemoryRelationRepository) AreFriends(_ context.Context, userID, otherID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasFriendLocked(userID, otherID), nil
}

func (r *MemoryRelationRepository) FindRequest(_ context.Context, senderID, receiverID string) (models.FriendRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[requestPair{senderID, receiverID}]
	if !ok {
		return models.FriendRequest{}, ErrNotFound
	}
	return req, nil
}

func (r *MemoryRelationRepository) CreateRequest(_ context.Context, request models.FriendRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requestPair{request.SenderID, request.ReceiverID}
	if _, ok := r.requests[key]; ok {
		return ErrConflict
	}
	r.requests[key] = request
	return nil
}

func (r *MemoryRelationRepository) TransitionRequest(_ context.Context, requestID, from, to string, at time.Time) (models.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, req := range r.requests {
		if req.ID != requestID {
			continue
		}
		if req.Status != from {
			return models.FriendRequest{}, ErrNotFound
		}
		req.Status = to
		req.UpdatedAt = at
		r.requests[key] = req
		return req, nil
	}
	return models.FriendRequest{}, ErrNotFound
}

func (r *MemoryRelationRepository) AcceptRequest(_ context.Context, senderID, receiverID string, at time.Time) (models.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requestPair{senderID, receiverID}
	req, ok := r.requests[key]
	if !ok || req.Status != models.RequestPending {
		return models.FriendRequest{}, ErrNotFound
	}
	if r.hasFriendLocked(senderID, receiverID) || r.hasFriendLocked(receiverID, senderID) {
		return models.FriendRequest{}, ErrConflict
	}

	req.Status = models.RequestAccepted
	req.UpdatedAt = at
	r.requests[key] = req
	r.friends[senderID] = append(r.friends[senderID], receiverID)
	r.friends[receiverID] = append(r.friends[receiverID], senderID)
	return req, nil
}

func (r *MemoryRelationRepository) DeletePendingRequest(_ context.Context, senderID, receiverID string) (models.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requestPair{senderID, receiverID}
	req, ok := r.requests[key]
	if !ok || req.Status != models.RequestPending {
		return models.FriendRequest{}, ErrNotFound
	}
	delete(r.requests, key)
	r.dropNotificationsLocked(req.ID)
	return req, nil
}

func (r *MemoryRelationRepository) ListPendingForReceiver(_ context.Context, receiverID string) ([]models.FriendRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []models.FriendRequest
	for _, req := range r.requests {
		if req.ReceiverID == receiverID && req.Status == models.RequestPending {
			pending = append(pending, req)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].UpdatedAt.Equal(pending[j].UpdatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].UpdatedAt.Before(pending[j].UpdatedAt)
	})
	return pending, nil
}

func (r *MemoryRelationRepository) RemoveFriendship(_ context.Context, userID, friendID string) ([]models.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasFriendLocked(userID, friendID) && !r.hasFriendLocked(friendID, userID) {
		return nil, ErrNotFound
	}
	r.friends[userID] = without(r.friends[userID], friendID)
	r.friends[friendID] = without(r.friends[friendID], userID)

	var removed []models.FriendRequest
	for _, key := range []requestPair{{userID, friendID}, {friendID, userID}} {
		if req, ok := r.requests[key]; ok {
			removed = append(removed, req)
			delete(r.requests, key)
			r.dropNotificationsLocked(req.ID)
		}
	}
	return removed, nil
}

// Requests returns a snapshot of every stored request row.
func (r *MemoryRelationRepository) Requests() []models.FriendRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.FriendRequest, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryRelationRepository) hasRequestIDLocked(id string) bool {
	for _, req := range r.requests {
		if req.ID == id {
			return true
		}
	}
	return false
}

// dropNotificationsLocked deletes the request notifications that point at a
// removed request. Callers hold r.mu, so the lock order is always relations
// before notifications.
func (r *MemoryRelationRepository) dropNotificationsLocked(requestID string) {
	if r.notes == nil {
		return
	}
	r.notes.mu.Lock()
	defer r.notes.mu.Unlock()
	r.notes.deleteLocked(func(n models.Notification) bool {
		return n.Type == models.NotificationRequest && n.TypeID == requestID
	})
}

func (r *MemoryRelationRepository) hasFriendLocked(userID, otherID string) bool {
	for _, id := range r.friends[userID] {
		if id == otherID {
			return true
		}
	}
	return false
}

func without(ids []string, target string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// MemoryNotificationRepository implements NotificationRepository in memory.
type MemoryNotificationRepository struct {
	mu            sync.RWMutex
	notifications []models.Notification
	requests      *MemoryRelationRepository
}

// LinkMemoryStores ties request notifications to request rows the way the
// notifications.request_id foreign key does in PostgreSQL: a request
// notification is only written while its request exists, and deleting the
// request deletes its notifications. Link the stores before sharing them.
func LinkMemoryStores(relations *MemoryRelationRepository, notes *MemoryNotificationRepository) {
	relations.notes = notes
	notes.requests = relations
}

// holdSubject read-locks the linked request store for the duration of a
// write and reports whether the request a request notification references
// still exists.
func (r *MemoryNotificationRepository) holdSubject(n models.Notification) (release func(), ok bool) {
	if r.requests == nil || n.Type != models.NotificationRequest {
		return func() {}, true
	}
	r.requests.mu.RLock()
	if !r.requests.hasRequestIDLocked(n.TypeID) {
		r.requests.mu.RUnlock()
		return func() {}, false
	}
	return r.requests.mu.RUnlock, true
}

// NewMemoryNotificationRepository returns an empty in-memory notification repository.
func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{}
}

func (r *MemoryNotificationRepository) Upsert(_ context.Context, n models.Notification) (models.Notification, error) {
	release, ok := r.holdSubject(n)
	defer release()
	if !ok {
		return models.Notification{}, ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.notifications {
		if existing.UserID == n.UserID && existing.Type == n.Type && existing.TypeID == n.TypeID {
			existing.Message = n.Message
			existing.Sender = n.Sender
			existing.Read = false
			existing.UpdatedAt = n.CreatedAt
			r.notifications[i] = existing
			return existing, nil
		}
	}

	n.Read = false
	n.UpdatedAt = n.CreatedAt
	r.notifications = append(r.notifications, n)
	return n, nil
}

func (r *MemoryNotificationRepository) Insert(_ context.Context, n models.Notification) (models.Notification, error) {
	release, ok := r.holdSubject(n)
	defer release()
	if !ok {
		return models.Notification{}, ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.notifications {
		if existing.ID == n.ID {
			return models.Notification{}, ErrConflict
		}
	}
	n.Read = false
	n.UpdatedAt = n.CreatedAt
	r.notifications = append(r.notifications, n)
	return n, nil
}

func (r *MemoryNotificationRepository) FindByID(_ context.Context, id string) (models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return models.Notification{}, ErrNotFound
}

func (r *MemoryNotificationRepository) FindByKey(_ context.Context, userID string, kind models.NotificationType, typeID string) (models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.notifications) - 1; i >= 0; i-- {
		n := r.notifications[i]
		if n.UserID == userID && n.Type == kind && n.TypeID == typeID {
			return n, nil
		}
	}
	return models.Notification{}, ErrNotFound
}

func (r *MemoryNotificationRepository) DeleteByKey(_ context.Context, userID string, kind models.NotificationType, typeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteLocked(func(n models.Notification) bool {
		return n.UserID == userID && n.Type == kind && n.TypeID == typeID
	})
	return nil
}

func (r *MemoryNotificationRepository) ListForUser(_ context.Context, userID string) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked(userID), nil
}

func (r *MemoryNotificationRepository) MarkRead(_ context.Context, id, userID string, at time.Time) (models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, n := range r.notifications {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			n.UpdatedAt = at
			r.notifications[i] = n
			return n, nil
		}
	}
	return models.Notification{}, ErrNotFound
}

func (r *MemoryNotificationRepository) MarkAllRead(_ context.Context, userID string, at time.Time) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.UpdatedAt = at
			r.notifications[i] = n
		}
	}
	return r.listLocked(userID), nil
}

func (r *MemoryNotificationRepository) DeleteAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteLocked(func(n models.Notification) bool { return n.UserID == userID })
	return nil
}

func (r *MemoryNotificationRepository) deleteLocked(match func(models.Notification) bool) {
	kept := r.notifications[:0]
	for _, n := range r.notifications {
		if !match(n) {
			kept = append(kept, n)
		}
	}
	r.notifications = kept
}

func (r *MemoryNotificationRepository) listLocked(userID string) []models.Notification {
	out := []models.Notification{}
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].UserID == userID {
			out = append(out, r.notifications[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

var _ UserRepository = (*MemoryUserRepository)(nil)
var _ RelationRepository = (*MemoryRelationRepository)(nil)
var _ NotificationRepository = (*MemoryNotificationRepository)(nil)
