package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/socialhub/backend/internal/logging"
)

// FriendHandler exposes the friend-request workflow.
type FriendHandler struct {
	Friends FriendService
	Limiter RateLimiter
}

type receiverRequest struct {
	ReceiverID string `json:"receiverId"`
}

type senderRequest struct {
	SenderID string `json:"senderId"`
}

// SendRequest handles POST /friends/send-request.
func (h FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	if !allowUser(h.Limiter, userID, "send-request") {
		logging.FromContext(ctx).Warn("send request rate limited")
		respondFailure(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req receiverRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.ReceiverID) == "" {
		respondFailure(ctx, w, http.StatusBadRequest, "receiverId is required")
		return
	}

	result, err := h.Friends.Send(ctx, userID, strings.TrimSpace(req.ReceiverID))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, result)
}

// AcceptRequest handles POST /friends/accept-request.
func (h FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var req senderRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.SenderID) == "" {
		respondFailure(ctx, w, http.StatusBadRequest, "senderId is required")
		return
	}

	request, err := h.Friends.Accept(ctx, strings.TrimSpace(req.SenderID), userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, request)
}

// RejectRequest handles POST /friends/reject-request.
func (h FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var req senderRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.SenderID) == "" {
		respondFailure(ctx, w, http.StatusBadRequest, "senderId is required")
		return
	}

	request, err := h.Friends.Reject(ctx, strings.TrimSpace(req.SenderID), userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, request)
}

// CancelRequest handles POST /friends/cancel-request.
func (h FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var req receiverRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.ReceiverID) == "" {
		respondFailure(ctx, w, http.StatusBadRequest, "receiverId is required")
		return
	}

	if err := h.Friends.Cancel(ctx, strings.TrimSpace(req.ReceiverID), userID); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, true)
}

// PendingRequests handles GET /friends/get-requests.
func (h FriendHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	pending, err := h.Friends.ListPending(r.Context(), userID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondData(r.Context(), w, http.StatusOK, pending)
}

// Unfriend handles POST /friends/{friendId}/unfriend.
func (h FriendHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	friendID := chi.URLParam(r, "friendId")
	if err := h.Friends.Unfriend(r.Context(), userID, friendID); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondData(r.Context(), w, http.StatusOK, true)
}

// List handles GET /friends.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	friends, err := h.Friends.Friends(r.Context(), userID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondData(r.Context(), w, http.StatusOK, friends)
}
