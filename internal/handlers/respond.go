package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/socialhub/backend/internal/apperr"
	"github.com/socialhub/backend/internal/auth"
	"github.com/socialhub/backend/internal/logging"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondData(ctx context.Context, w http.ResponseWriter, status int, data any) {
	respondJSON(ctx, w, status, envelope{Success: true, Data: data})
}

func respondFailure(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, failure{Success: false, Error: message})
}

// respondError maps a classified failure onto its HTTP status.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindUnauthorized:
		status = http.StatusForbidden
	case apperr.KindInvalid:
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logging.FromContext(ctx).Error("operation failed", "error", err)
	}
	respondFailure(ctx, w, status, apperr.Message(err))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// sessionUser returns the authenticated user id. Routes mounted behind
// auth.RequireSession always have one.
func sessionUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok || session.UserID == "" {
		respondFailure(r.Context(), w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return session.UserID, true
}
