package handlers

import (
	"net/http"
	"testing"

	"github.com/socialhub/backend/internal/models"
)

func TestUserHandlerProfile(t *testing.T) {
	env := newTestEnv(t, []string{"alice", "bob"})
	expectStatus(t, env.do(t, "alice", http.MethodPost, "/friends/send-request", receiverRequest{ReceiverID: "u-bob"}), http.StatusOK)

	rec := env.do(t, "bob", http.MethodGet, "/users/alice", nil)
	expectStatus(t, rec, http.StatusOK)

	var profile models.Profile
	decodeEnvelope(t, rec, &profile)
	if profile.User.ID != "u-alice" || profile.Relation.IsFriend {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.Relation.RequestStatus != models.StatusReceived {
		t.Fatalf("expected bob to see a received request, got %q", profile.Relation.RequestStatus)
	}

	rec = env.do(t, "bob", http.MethodGet, "/users/nobody", nil)
	expectStatus(t, rec, http.StatusNotFound)
}
