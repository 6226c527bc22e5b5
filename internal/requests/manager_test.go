package requests

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/socialhub/backend/internal/apperr"
	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/notifications"
	"github.com/socialhub/backend/internal/presence"
	"github.com/socialhub/backend/internal/relations"
	"github.com/socialhub/backend/internal/repositories"
)

type testChannel struct {
	id string

	mu     sync.Mutex
	events []string
}

func (c *testChannel) ID() string { return c.id }

func (c *testChannel) Send(msg presence.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, msg.Event)
	return nil
}

func (c *testChannel) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

type publishedEvent struct {
	subject string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subject, payload: payload})
	return nil
}

type harness struct {
	users         *repositories.MemoryUserRepository
	relations     *repositories.MemoryRelationRepository
	notifications *repositories.MemoryNotificationRepository
	router        *presence.Router
	engine        *relations.Engine
	publisher     *recordingPublisher
	manager       *Manager
}

func newHarness(t *testing.T, usernames ...string) harness {
	t.Helper()
	h := harness{
		users:         repositories.NewMemoryUserRepository(),
		relations:     repositories.NewMemoryRelationRepository(),
		notifications: repositories.NewMemoryNotificationRepository(),
		router:        presence.NewRouter(),
		publisher:     &recordingPublisher{},
	}
	repositories.LinkMemoryStores(h.relations, h.notifications)
	h.engine = relations.NewEngine(h.users, h.relations)
	h.manager = NewManager(Dependencies{
		Users:         h.users,
		Relations:     h.relations,
		Engine:        h.engine,
		Notifications: notifications.NewService(h.notifications, h.router),
		Emitter:       h.router,
		Publisher:     h.publisher,
	})
	var (
		clockMu sync.Mutex
		clock   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	h.manager.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	for _, name := range usernames {
		if err := h.users.Create(context.Background(), models.User{ID: name, Username: name, Email: name + "@example.com"}); err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
	}
	return h
}

func (h harness) connect(userID, channelID string) *testChannel {
	ch := &testChannel{id: channelID}
	h.router.Register(ch, userID)
	return ch
}

func (h harness) relation(t *testing.T, subjectID, viewerID string) models.RelationView {
	t.Helper()
	view, err := h.engine.Compute(context.Background(), subjectID, viewerID)
	if err != nil {
		t.Fatalf("compute relation: %v", err)
	}
	return view
}

func (h harness) requestNotifications(t *testing.T, userID string) []models.Notification {
	t.Helper()
	list, err := h.notifications.ListForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	var out []models.Notification
	for _, n := range list {
		if n.Type == models.NotificationRequest {
			out = append(out, n)
		}
	}
	return out
}

func TestSendSetsDirectionalStatus(t *testing.T) {
	h := newHarness(t, "alice", "bob")

	result, err := h.manager.Send(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Request.Status != models.RequestPending {
		t.Fatalf("expected pending request, got %q", result.Request.Status)
	}
	if result.Notification.UserID != "bob" || result.Notification.TypeID != result.Request.ID {
		t.Fatalf("unexpected notification %+v", result.Notification)
	}
	if result.Notification.Message != "alice sent you a friend request" {
		t.Fatalf("unexpected notification message %q", result.Notification.Message)
	}

	// alice's view of bob: she sent the request.
	if got := h.relation(t, "bob", "alice").RequestStatus; got != models.StatusSent {
		t.Fatalf("expected alice to see %q, got %q", models.StatusSent, got)
	}
	// bob's view of alice: he received it.
	if got := h.relation(t, "alice", "bob").RequestStatus; got != models.StatusReceived {
		t.Fatalf("expected bob to see %q, got %q", models.StatusReceived, got)
	}
}

func TestSendPreconditions(t *testing.T) {
	h := newHarness(t, "alice", "bob", "carol")
	ctx := context.Background()

	if _, err := h.manager.Send(ctx, "bob", "carol"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := h.manager.Accept(ctx, "bob", "carol"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.manager.Send(ctx, "alice", "carol"); err != nil {
		t.Fatalf("send: %v", err)
	}

	cases := []struct {
		name     string
		sender   string
		receiver string
		want     apperr.Kind
	}{
		{name: "self", sender: "alice", receiver: "alice", want: apperr.KindConflict},
		{name: "already friends", sender: "carol", receiver: "bob", want: apperr.KindConflict},
		{name: "reverse pending", sender: "carol", receiver: "alice", want: apperr.KindConflict},
		{name: "unknown receiver", sender: "alice", receiver: "ghost", want: apperr.KindNotFound},
		{name: "unknown sender", sender: "ghost", receiver: "alice", want: apperr.KindNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.manager.Send(ctx, tc.sender, tc.receiver)
			if !apperr.Is(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestSendIsIdempotentWhilePending(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	first, err := h.manager.Send(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := h.manager.Send(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}

	if first.Request.ID != second.Request.ID {
		t.Fatalf("expected same request, got %q and %q", first.Request.ID, second.Request.ID)
	}
	if first.Notification.ID != second.Notification.ID {
		t.Fatalf("expected existing notification, got %q and %q", first.Notification.ID, second.Notification.ID)
	}
	if rows := h.relations.Requests(); len(rows) != 1 {
		t.Fatalf("expected a single request row, got %d", len(rows))
	}
	if n := h.requestNotifications(t, "bob"); len(n) != 1 {
		t.Fatalf("expected a single notification, got %d", len(n))
	}
}

func TestResendAfterReject(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	sent, err := h.manager.Send(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	rejected, err := h.manager.Reject(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.RequestRejected {
		t.Fatalf("expected rejected status, got %q", rejected.Status)
	}
	if got := h.relation(t, "bob", "alice").RequestStatus; got != models.StatusNone {
		t.Fatalf("expected no pending request after reject, got %q", got)
	}

	resent, err := h.manager.Send(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if resent.Request.ID != sent.Request.ID {
		t.Fatalf("expected the rejected row to be reused, got %q and %q", sent.Request.ID, resent.Request.ID)
	}

	rows := h.relations.Requests()
	if len(rows) != 1 || rows[0].Status != models.RequestPending {
		t.Fatalf("expected exactly one pending row, got %+v", rows)
	}
	if n := h.requestNotifications(t, "bob"); len(n) != 1 || n[0].Read {
		t.Fatalf("expected one unread request notification, got %+v", n)
	}
}

func TestAcceptMakesFriendsBothWays(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}
	accepted, err := h.manager.Accept(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != models.RequestAccepted {
		t.Fatalf("expected accepted status, got %q", accepted.Status)
	}

	aliceFriends, _ := h.relations.FriendIDs(ctx, "alice")
	bobFriends, _ := h.relations.FriendIDs(ctx, "bob")
	if len(aliceFriends) != 1 || aliceFriends[0] != "bob" || len(bobFriends) != 1 || bobFriends[0] != "alice" {
		t.Fatalf("expected symmetric friendship, got %v and %v", aliceFriends, bobFriends)
	}
	if !h.relation(t, "alice", "bob").IsFriend || !h.relation(t, "bob", "alice").IsFriend {
		t.Fatal("expected isFriend in both directions")
	}

	acceptance := h.requestNotifications(t, "alice")
	if len(acceptance) != 1 || acceptance[0].Message != "bob accepted your friend request" {
		t.Fatalf("expected acceptance notification for alice, got %+v", acceptance)
	}

	if _, err := h.manager.Accept(ctx, "alice", "bob"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected second accept to fail with not found, got %v", err)
	}
}

func TestAcceptFailures(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	if _, err := h.manager.Accept(ctx, "bob", "bob"); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for own id, got %v", err)
	}
	if _, err := h.manager.Accept(ctx, "alice", "bob"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found without a pending request, got %v", err)
	}
	if _, err := h.manager.Accept(ctx, "ghost", "bob"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for unknown sender, got %v", err)
	}

	// The receiver cannot accept on the sender's behalf.
	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := h.manager.Accept(ctx, "bob", "alice"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for wrong direction, got %v", err)
	}
}

func TestConcurrentAcceptSucceedsOnce(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.manager.Accept(ctx, "alice", "bob"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful accept, got %d", successes)
	}
	friends, _ := h.relations.FriendIDs(ctx, "alice")
	if len(friends) != 1 {
		t.Fatalf("expected a single friendship edge, got %v", friends)
	}
}

func TestCancelRemovesRequestAndNotification(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()
	bobPhone := h.connect("bob", "bob-phone")

	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := h.manager.Cancel(ctx, "bob", "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if rows := h.relations.Requests(); len(rows) != 0 {
		t.Fatalf("expected request row to be deleted, got %+v", rows)
	}
	if n := h.requestNotifications(t, "bob"); len(n) != 0 {
		t.Fatalf("expected notification to be deleted, got %+v", n)
	}
	if got := h.relation(t, "alice", "bob").RequestStatus; got != models.StatusNone {
		t.Fatalf("expected no pending request, got %q", got)
	}

	want := []string{
		presence.EventNotificationUpdate,
		presence.EventRequestReceived,
		presence.EventRequestCancelledReceiver,
		presence.EventNotificationRemove,
	}
	got := bobPhone.received()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}

	if err := h.manager.Cancel(ctx, "bob", "alice"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected second cancel to fail with not found, got %v", err)
	}
}

func TestCancelDoesNotTouchRejectedRequests(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := h.manager.Reject(ctx, "alice", "bob"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := h.manager.Cancel(ctx, "bob", "alice"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if rows := h.relations.Requests(); len(rows) != 1 || rows[0].Status != models.RequestRejected {
		t.Fatalf("expected rejected row to remain, got %+v", rows)
	}
}

func TestFanOutToEveryChannel(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()
	phone := h.connect("bob", "bob-phone")
	laptop := h.connect("bob", "bob-laptop")

	// alice has no channels; the send must still succeed.
	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, ch := range []*testChannel{phone, laptop} {
		events := ch.received()
		if len(events) != 2 || events[0] != presence.EventNotificationUpdate || events[1] != presence.EventRequestReceived {
			t.Fatalf("channel %s: unexpected events %v", ch.id, events)
		}
	}
}

func TestAcceptEmitsToBothSides(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()
	alice := h.connect("alice", "alice-1")
	bob := h.connect("bob", "bob-1")

	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := h.manager.Accept(ctx, "alice", "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	aliceEvents := alice.received()
	if last := aliceEvents[len(aliceEvents)-1]; last != presence.EventRequestAcceptedSender {
		t.Fatalf("expected alice to get %s last, got %v", presence.EventRequestAcceptedSender, aliceEvents)
	}
	bobEvents := bob.received()
	if last := bobEvents[len(bobEvents)-1]; last != presence.EventRequestAcceptedUser {
		t.Fatalf("expected bob to get %s last, got %v", presence.EventRequestAcceptedUser, bobEvents)
	}

	if len(h.publisher.events) != 2 || h.publisher.events[1].subject != SubjectRequestAccepted {
		t.Fatalf("unexpected published events %+v", h.publisher.events)
	}
}

func TestOfflineReceiverSeesPendingOnReconnect(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	sent, err := h.manager.Send(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	bob := h.connect("bob", "bob-1")
	pending, err := h.manager.ListPending(ctx, "bob")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending request, got %d", len(pending))
	}
	if pending[0].Request.ID != sent.Request.ID || pending[0].Sender.Username != "alice" {
		t.Fatalf("unexpected pending request %+v", pending[0])
	}
	if pending[0].Relation.IsFriend {
		t.Fatal("expected isFriend=false")
	}
	if len(bob.received()) != 0 {
		t.Fatalf("expected no replay of events sent while offline, got %v", bob.received())
	}
}

func TestSendAcceptUnfriendLeavesNoTrace(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := h.manager.Accept(ctx, "alice", "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := h.manager.Unfriend(ctx, "alice", "bob"); err != nil {
		t.Fatalf("unfriend: %v", err)
	}

	if h.relation(t, "alice", "bob").IsFriend || h.relation(t, "bob", "alice").IsFriend {
		t.Fatal("expected friendship to be gone")
	}
	if rows := h.relations.Requests(); len(rows) != 0 {
		t.Fatalf("expected no request rows, got %+v", rows)
	}
	if n := h.requestNotifications(t, "alice"); len(n) != 0 {
		t.Fatalf("expected no request notifications for alice, got %+v", n)
	}
	if n := h.requestNotifications(t, "bob"); len(n) != 0 {
		t.Fatalf("expected no request notifications for bob, got %+v", n)
	}

	if err := h.manager.Unfriend(ctx, "alice", "bob"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected second unfriend to fail with not found, got %v", err)
	}

	// They can start over.
	if _, err := h.manager.Send(ctx, "bob", "alice"); err != nil {
		t.Fatalf("send after unfriend: %v", err)
	}
}

func TestFriendsListsRelations(t *testing.T) {
	h := newHarness(t, "alice", "bob", "carol")
	ctx := context.Background()

	for _, pair := range [][2]string{{"alice", "bob"}, {"alice", "carol"}, {"bob", "carol"}} {
		if _, err := h.manager.Send(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("send %v: %v", pair, err)
		}
		if _, err := h.manager.Accept(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("accept %v: %v", pair, err)
		}
	}

	friends, err := h.manager.Friends(ctx, "alice")
	if err != nil {
		t.Fatalf("friends: %v", err)
	}
	if len(friends) != 2 {
		t.Fatalf("expected two friends, got %+v", friends)
	}
	for _, f := range friends {
		if !f.Relation.IsFriend || len(f.Relation.MutualFriends) != 1 {
			t.Fatalf("unexpected relation for %s: %+v", f.ID, f.Relation)
		}
	}
}

// interleavedRelations runs a competing transition right after one of its
// writes succeeds, standing in for a request that lands between two steps of
// another.
type interleavedRelations struct {
	*repositories.MemoryRelationRepository
	afterCreate func()
	afterAccept func()
}

func (r *interleavedRelations) CreateRequest(ctx context.Context, request models.FriendRequest) error {
	if err := r.MemoryRelationRepository.CreateRequest(ctx, request); err != nil {
		return err
	}
	if r.afterCreate != nil {
		r.afterCreate()
	}
	return nil
}

func (r *interleavedRelations) AcceptRequest(ctx context.Context, senderID, receiverID string, at time.Time) (models.FriendRequest, error) {
	req, err := r.MemoryRelationRepository.AcceptRequest(ctx, senderID, receiverID, at)
	if err != nil {
		return req, err
	}
	if r.afterAccept != nil {
		r.afterAccept()
	}
	return req, nil
}

func (h harness) managerWith(relations repositories.RelationRepository, notifier Notifier) *Manager {
	deps := h.manager.deps
	if relations != nil {
		deps.Relations = relations
	}
	if notifier != nil {
		deps.Notifications = notifier
	}
	m := NewManager(deps)
	m.now = h.manager.now
	return m
}

func TestSendInterleavedWithCancelLeavesNoOrphanNotification(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	relations := &interleavedRelations{MemoryRelationRepository: h.relations}
	relations.afterCreate = func() {
		if err := h.manager.Cancel(ctx, "bob", "alice"); err != nil {
			t.Errorf("interleaved cancel: %v", err)
		}
	}

	_, err := h.managerWith(relations, nil).Send(ctx, "alice", "bob")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected the withdrawn send to conflict, got %v", err)
	}
	if rows := h.relations.Requests(); len(rows) != 0 {
		t.Fatalf("expected cancel to win, got %+v", rows)
	}
	if n := h.requestNotifications(t, "bob"); len(n) != 0 {
		t.Fatalf("expected no notification without its request, got %+v", n)
	}

	// A later send starts cleanly.
	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send after cancel: %v", err)
	}
	if n := h.requestNotifications(t, "bob"); len(n) != 1 {
		t.Fatalf("expected one request notification, got %+v", n)
	}
}

func TestAcceptInterleavedWithUnfriendLeavesNoOrphanNotification(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()

	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}

	relations := &interleavedRelations{MemoryRelationRepository: h.relations}
	relations.afterAccept = func() {
		if err := h.manager.Unfriend(ctx, "bob", "alice"); err != nil {
			t.Errorf("interleaved unfriend: %v", err)
		}
	}

	if _, err := h.managerWith(relations, nil).Accept(ctx, "alice", "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if rows := h.relations.Requests(); len(rows) != 0 {
		t.Fatalf("expected unfriend to remove the request, got %+v", rows)
	}
	for _, owner := range []string{"alice", "bob"} {
		if n := h.requestNotifications(t, owner); len(n) != 0 {
			t.Fatalf("expected no request notification for %s, got %+v", owner, n)
		}
	}
}

type failingNotifier struct {
	Notifier
	failOn string
}

func (n failingNotifier) Notify(ctx context.Context, draft notifications.Draft) (models.Notification, error) {
	if draft.UserID == n.failOn {
		return models.Notification{}, apperr.Internal("store notification", errors.New("connection reset"))
	}
	return n.Notifier.Notify(ctx, draft)
}

func TestAcceptSurvivesNotificationFailure(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	ctx := context.Background()
	alice := h.connect("alice", "alice-1")
	bob := h.connect("bob", "bob-1")

	if _, err := h.manager.Send(ctx, "alice", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}

	m := h.managerWith(nil, failingNotifier{Notifier: h.manager.deps.Notifications, failOn: "alice"})
	request, err := m.Accept(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("expected accept to succeed once committed, got %v", err)
	}
	if request.Status != models.RequestAccepted {
		t.Fatalf("expected accepted request, got %+v", request)
	}
	if !h.relation(t, "alice", "bob").IsFriend {
		t.Fatal("expected friendship to be committed")
	}

	if events := alice.received(); events[len(events)-1] != presence.EventRequestAcceptedSender {
		t.Fatalf("expected alice to still get %s, got %v", presence.EventRequestAcceptedSender, events)
	}
	if events := bob.received(); events[len(events)-1] != presence.EventRequestAcceptedUser {
		t.Fatalf("expected bob to still get %s, got %v", presence.EventRequestAcceptedUser, events)
	}
	if last := h.publisher.events[len(h.publisher.events)-1]; last.subject != SubjectRequestAccepted {
		t.Fatalf("expected accepted event to be published, got %+v", h.publisher.events)
	}
}

func TestRelationUpdateOmitsMissingFriendList(t *testing.T) {
	req := models.FriendRequest{ID: "r1", SenderID: "alice", ReceiverID: "bob", Status: models.RequestPending}

	raw, err := json.Marshal(RelationUpdate{Request: &req})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), `"friends"`) {
		t.Fatalf("expected no friends key on a request event, got %s", raw)
	}

	raw, err = json.Marshal(RelationUpdate{Friends: []models.FriendWithRelation{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"friends":[]`) {
		t.Fatalf("expected an emptied friend list to be sent, got %s", raw)
	}
}
