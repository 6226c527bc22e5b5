// Package events connects the service to the NATS message bus: it consumes
// content events from the post service and publishes relationship events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/socialhub/backend/internal/logging"
	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/notifications"
	"github.com/socialhub/backend/internal/presence"
	"github.com/socialhub/backend/internal/repositories"
)

// Content subjects.
const (
	ContentSubjects       = "content.>"
	SubjectPostCreated    = "content.post.created"
	SubjectPostLiked      = "content.post.liked"
	SubjectPostCommented  = "content.post.commented"
	SubjectCommentLiked   = "content.comment.liked"
	SubjectCommentReplied = "content.comment.replied"
	SubjectReplyLiked     = "content.reply.liked"
)

// ContentEvent is the payload of every content subject.
type ContentEvent struct {
	PostID    string          `json:"postId"`
	CommentID string          `json:"commentId,omitempty"`
	ReplyID   string          `json:"replyId,omitempty"`
	OwnerID   string          `json:"ownerId,omitempty"`
	ActorID   string          `json:"actorId"`
	Post      json.RawMessage `json:"post,omitempty"`
}

type contentRoute struct {
	kind    models.NotificationType
	subject func(ContentEvent) string
	verb    string
}

var contentRoutes = map[string]contentRoute{
	SubjectPostLiked: {
		kind:    models.NotificationPostLike,
		subject: func(e ContentEvent) string { return e.PostID },
		verb:    "liked your post",
	},
	SubjectPostCommented: {
		kind:    models.NotificationPostComment,
		subject: func(e ContentEvent) string { return e.PostID },
		verb:    "commented on your post",
	},
	SubjectCommentLiked: {
		kind:    models.NotificationCommentLike,
		subject: func(e ContentEvent) string { return e.CommentID },
		verb:    "liked your comment",
	},
	SubjectCommentReplied: {
		kind:    models.NotificationReply,
		subject: func(e ContentEvent) string { return e.CommentID },
		verb:    "replied to your comment",
	},
	SubjectReplyLiked: {
		kind:    models.NotificationReplyLike,
		subject: func(e ContentEvent) string { return e.ReplyID },
		verb:    "liked your reply",
	},
}

// ErrUnknownSubject is returned for subjects without a route.
var ErrUnknownSubject = errors.New("unknown content subject")

// Notifier records and pushes notifications.
type Notifier interface {
	Notify(ctx context.Context, draft notifications.Draft) (models.Notification, error)
}

// UserFinder resolves the acting account.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// Broadcaster delivers live events.
type Broadcaster interface {
	Emit(ctx context.Context, userID, event string, payload any) int
	EmitExcept(ctx context.Context, userID, event string, payload any) int
}

// ContentConsumer turns content events into notifications and live updates.
type ContentConsumer struct {
	notifier    Notifier
	users       UserFinder
	broadcaster Broadcaster
}

// NewContentConsumer constructs a ContentConsumer.
func NewContentConsumer(notifier Notifier, users UserFinder, broadcaster Broadcaster) *ContentConsumer {
	return &ContentConsumer{notifier: notifier, users: users, broadcaster: broadcaster}
}

// Handle is the NATS message callback.
func (c *ContentConsumer) Handle(msg *nats.Msg) {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))
	ctx, span := logging.StartSpan(ctx, "events.content")
	defer span.End()

	if err := c.Process(ctx, msg.Subject, msg.Data); err != nil {
		span.Fail(err)
		logging.FromContext(ctx).Error("content event failed", "subject", msg.Subject, "error", err)
	}
}

// Process handles a single content event.
func (c *ContentConsumer) Process(ctx context.Context, subject string, data []byte) error {
	var event ContentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode content event: %w", err)
	}

	if subject == SubjectPostCreated {
		c.broadcaster.Emit(ctx, event.ActorID, presence.EventPostCreateUser, event.Post)
		c.broadcaster.EmitExcept(ctx, event.ActorID, presence.EventPostCreateGlobal, event.Post)
		return nil
	}

	route, ok := contentRoutes[subject]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubject, subject)
	}
	if event.OwnerID == "" || event.OwnerID == event.ActorID {
		return nil
	}

	actor, err := c.users.FindByID(ctx, event.ActorID)
	if errors.Is(err, repositories.ErrNotFound) {
		logging.FromContext(ctx).Warn("content event from unknown actor", "subject", subject, "actor_id", event.ActorID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load actor: %w", err)
	}

	_, err = c.notifier.Notify(ctx, notifications.Draft{
		UserID:  event.OwnerID,
		Type:    route.kind,
		TypeID:  route.subject(event),
		Message: fmt.Sprintf("%s %s", actor.Username, route.verb),
		Sender:  actor.Username,
	})
	return err
}
