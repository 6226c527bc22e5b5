// Package relations derives relationship views between accounts from the
// stored friendship edges and pending requests.
package relations

import (
	"context"
	"errors"

	"github.com/socialhub/backend/internal/apperr"
	"github.com/socialhub/backend/internal/logging"
	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/repositories"
)

// UserReader is the user lookup the engine needs.
type UserReader interface {
	FindManyByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// RelationReader is the friendship and request lookup the engine needs.
type RelationReader interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	FindRequest(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error)
}

// Engine computes relation views. It holds no state and is safe for concurrent use.
type Engine struct {
	users     UserReader
	relations RelationReader
}

// NewEngine constructs an Engine.
func NewEngine(users UserReader, relations RelationReader) *Engine {
	return &Engine{users: users, relations: relations}
}

// Compute returns the relation between subject and viewer, as seen by viewer.
func (e *Engine) Compute(ctx context.Context, subjectID, viewerID string) (models.RelationView, error) {
	ctx, span := logging.StartSpan(ctx, "relations.compute")
	defer span.End()

	users, err := e.users.FindManyByIDs(ctx, []string{subjectID, viewerID})
	if err != nil {
		span.Fail(err)
		return models.RelationView{}, apperr.Internal("load users", err)
	}
	if !containsUser(users, subjectID) || !containsUser(users, viewerID) {
		return models.RelationView{}, apperr.NotFound("user not found")
	}

	viewerFriends, err := e.relations.FriendIDs(ctx, viewerID)
	if err != nil {
		span.Fail(err)
		return models.RelationView{}, apperr.Internal("load friends", err)
	}

	view, err := e.view(ctx, subjectID, viewerID, toSet(viewerFriends))
	if err != nil {
		span.Fail(err)
		return models.RelationView{}, err
	}
	return view, nil
}

// FriendsWithRelations lists userID's friends, each annotated with its relation
// to userID. Mutual friends are relative to userID.
func (e *Engine) FriendsWithRelations(ctx context.Context, userID string) ([]models.FriendWithRelation, error) {
	ctx, span := logging.StartSpan(ctx, "relations.friends_with_relations")
	defer span.End()

	users, err := e.users.FindManyByIDs(ctx, []string{userID})
	if err != nil {
		span.Fail(err)
		return nil, apperr.Internal("load user", err)
	}
	if len(users) == 0 {
		return nil, apperr.NotFound("user not found")
	}

	friendIDs, err := e.relations.FriendIDs(ctx, userID)
	if err != nil {
		span.Fail(err)
		return nil, apperr.Internal("load friends", err)
	}
	friends, err := e.users.FindManyByIDs(ctx, friendIDs)
	if err != nil {
		span.Fail(err)
		return nil, apperr.Internal("load friend accounts", err)
	}

	own := toSet(friendIDs)
	out := make([]models.FriendWithRelation, 0, len(friends))
	for _, friend := range friends {
		view, err := e.view(ctx, friend.ID, userID, own)
		if err != nil {
			span.Fail(err)
			return nil, err
		}
		out = append(out, models.FriendWithRelation{UserSummary: friend.Summary(), Relation: view})
	}

	return out, nil
}

// view assumes both accounts exist. viewerFriends is the viewer's friend set.
func (e *Engine) view(ctx context.Context, subjectID, viewerID string, viewerFriends map[string]struct{}) (models.RelationView, error) {
	view := models.RelationView{
		SubjectID:     subjectID,
		ViewerID:      viewerID,
		MutualFriends: []models.UserSummary{},
		RequestStatus: models.StatusNone,
	}
	if subjectID == viewerID {
		return view, nil
	}

	subjectFriends, err := e.relations.FriendIDs(ctx, subjectID)
	if err != nil {
		return models.RelationView{}, apperr.Internal("load friends", err)
	}

	var mutualIDs []string
	for _, id := range subjectFriends {
		if id == viewerID {
			view.IsFriend = true
			continue
		}
		if _, ok := viewerFriends[id]; ok {
			mutualIDs = append(mutualIDs, id)
		}
	}

	if len(mutualIDs) > 0 {
		mutual, err := e.users.FindManyByIDs(ctx, mutualIDs)
		if err != nil {
			return models.RelationView{}, apperr.Internal("load mutual friends", err)
		}
		for _, u := range mutual {
			view.MutualFriends = append(view.MutualFriends, u.Summary())
		}
	}

	status, err := e.requestStatus(ctx, subjectID, viewerID)
	if err != nil {
		return models.RelationView{}, err
	}
	view.RequestStatus = status

	return view, nil
}

func (e *Engine) requestStatus(ctx context.Context, subjectID, viewerID string) (string, error) {
	pending, err := e.isPending(ctx, viewerID, subjectID)
	if err != nil {
		return "", err
	}
	if pending {
		return models.StatusSent, nil
	}

	pending, err = e.isPending(ctx, subjectID, viewerID)
	if err != nil {
		return "", err
	}
	if pending {
		return models.StatusReceived, nil
	}

	return models.StatusNone, nil
}

func (e *Engine) isPending(ctx context.Context, senderID, receiverID string) (bool, error) {
	req, err := e.relations.FindRequest(ctx, senderID, receiverID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal("load friend request", err)
	}
	return req.Status == models.RequestPending, nil
}

func containsUser(users []models.User, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
