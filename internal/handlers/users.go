package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/repositories"
)

// UserHandler serves public profiles annotated with the viewer's relation.
type UserHandler struct {
	Users     UserStore
	Relations RelationComputer
}

// Profile handles GET /users/{username}.
func (h UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	user, err := h.Users.FindByUsername(ctx, chi.URLParam(r, "username"))
	if errors.Is(err, repositories.ErrNotFound) {
		respondFailure(ctx, w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	relation, err := h.Relations.Compute(ctx, user.ID, viewerID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, models.Profile{User: user.Summary(), Relation: relation})
}
