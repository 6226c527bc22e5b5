package relations

import (
	"context"
	"testing"
	"time"

	"github.com/socialhub/backend/internal/apperr"
	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/repositories"
)

type fixture struct {
	users     *repositories.MemoryUserRepository
	relations *repositories.MemoryRelationRepository
	engine    *Engine
}

func newFixture(t *testing.T, usernames ...string) fixture {
	t.Helper()
	f := fixture{
		users:     repositories.NewMemoryUserRepository(),
		relations: repositories.NewMemoryRelationRepository(),
	}
	f.engine = NewEngine(f.users, f.relations)
	for _, name := range usernames {
		if err := f.users.Create(context.Background(), models.User{ID: name, Username: name, Email: name + "@example.com"}); err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
	}
	return f
}

func (f fixture) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	if err := f.relations.CreateRequest(ctx, models.FriendRequest{ID: a + "->" + b, SenderID: a, ReceiverID: b, Status: models.RequestPending}); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := f.relations.AcceptRequest(ctx, a, b, time.Now()); err != nil {
		t.Fatalf("accept request: %v", err)
	}
}

func (f fixture) request(t *testing.T, sender, receiver string) {
	t.Helper()
	if err := f.relations.CreateRequest(context.Background(), models.FriendRequest{ID: sender + "->" + receiver, SenderID: sender, ReceiverID: receiver, Status: models.RequestPending}); err != nil {
		t.Fatalf("create request: %v", err)
	}
}

func TestComputeRequestStatus(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	f.request(t, "alice", "bob")
	ctx := context.Background()

	cases := []struct {
		name    string
		subject string
		viewer  string
		want    string
	}{
		{name: "viewer sent", subject: "bob", viewer: "alice", want: models.StatusSent},
		{name: "viewer received", subject: "alice", viewer: "bob", want: models.StatusReceived},
		{name: "strangers", subject: "carol", viewer: "alice", want: models.StatusNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			view, err := f.engine.Compute(ctx, tc.subject, tc.viewer)
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			if view.RequestStatus != tc.want {
				t.Fatalf("expected status %q got %q", tc.want, view.RequestStatus)
			}
			if view.IsFriend {
				t.Fatal("expected isFriend=false")
			}
		})
	}
}

func TestComputeMutualFriendsFollowSubjectOrder(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol", "dave", "erin")
	// bob's friend set in insertion order: erin, carol, alice, dave
	f.befriend(t, "bob", "erin")
	f.befriend(t, "bob", "carol")
	f.befriend(t, "bob", "alice")
	f.befriend(t, "bob", "dave")
	// alice knows dave and erin but not carol
	f.befriend(t, "alice", "dave")
	f.befriend(t, "alice", "erin")

	view, err := f.engine.Compute(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !view.IsFriend {
		t.Fatal("expected bob and alice to be friends")
	}

	want := []models.UserSummary{{ID: "erin", Username: "erin"}, {ID: "dave", Username: "dave"}}
	if len(view.MutualFriends) != len(want) {
		t.Fatalf("expected %d mutual friends got %+v", len(want), view.MutualFriends)
	}
	for i := range want {
		if view.MutualFriends[i] != want[i] {
			t.Fatalf("mutual friend %d: expected %+v got %+v", i, want[i], view.MutualFriends[i])
		}
	}
	if view.RequestStatus != models.StatusNone {
		t.Fatalf("expected no pending request, got %q", view.RequestStatus)
	}
}

func TestComputeIsSymmetricForFriendship(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.befriend(t, "alice", "bob")
	ctx := context.Background()

	ab, err := f.engine.Compute(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	ba, err := f.engine.Compute(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !ab.IsFriend || !ba.IsFriend {
		t.Fatalf("expected friendship both ways, got %v and %v", ab.IsFriend, ba.IsFriend)
	}
}

func TestComputeMissingAccount(t *testing.T) {
	f := newFixture(t, "alice")

	_, err := f.engine.Compute(context.Background(), "ghost", "alice")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFriendsWithRelationsIsRelativeToRequester(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol", "dave")
	f.befriend(t, "alice", "bob")
	f.befriend(t, "alice", "carol")
	f.befriend(t, "bob", "carol")
	f.befriend(t, "bob", "dave")

	friends, err := f.engine.FriendsWithRelations(context.Background(), "alice")
	if err != nil {
		t.Fatalf("friends with relations: %v", err)
	}
	if len(friends) != 2 || friends[0].ID != "bob" || friends[1].ID != "carol" {
		t.Fatalf("unexpected friend list %+v", friends)
	}

	bob := friends[0].Relation
	if bob.SubjectID != "bob" || bob.ViewerID != "alice" || !bob.IsFriend {
		t.Fatalf("unexpected relation for bob: %+v", bob)
	}
	// dave is bob's friend but not alice's, so only carol is mutual.
	if len(bob.MutualFriends) != 1 || bob.MutualFriends[0].ID != "carol" {
		t.Fatalf("expected carol as the only mutual friend, got %+v", bob.MutualFriends)
	}
}

func TestFriendsWithRelationsEmpty(t *testing.T) {
	f := newFixture(t, "alice")

	friends, err := f.engine.FriendsWithRelations(context.Background(), "alice")
	if err != nil {
		t.Fatalf("friends with relations: %v", err)
	}
	if len(friends) != 0 {
		t.Fatalf("expected no friends, got %+v", friends)
	}

	if _, err := f.engine.FriendsWithRelations(context.Background(), "ghost"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
