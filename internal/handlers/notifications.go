package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NotificationHandler serves the session user's notification feed.
type NotificationHandler struct {
	Notifications NotificationService
}

// List handles GET /notifications.
func (h NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	list, err := h.Notifications.List(r.Context(), userID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondData(r.Context(), w, http.StatusOK, list)
}

// MarkRead handles POST /notifications/{notificationId}/mark-read.
func (h NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	n, err := h.Notifications.MarkRead(r.Context(), userID, chi.URLParam(r, "notificationId"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondData(r.Context(), w, http.StatusOK, n)
}

// MarkAllRead handles POST /notifications/mark-all-read.
func (h NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	list, err := h.Notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondData(r.Context(), w, http.StatusOK, list)
}

// ClearAll handles POST /notifications/clear-all.
func (h NotificationHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	if err := h.Notifications.ClearAll(r.Context(), userID); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondData(r.Context(), w, http.StatusOK, true)
}
