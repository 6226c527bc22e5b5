package models

import "time"

// User represents an account within the SocialHub platform.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary returns the public projection of the user.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username}
}

// UserSummary is the {id, username} pair used wherever another account is referenced.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Request statuses.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// FriendRequest represents the invitation workflow for an ordered (sender, receiver) pair.
type FriendRequest struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NotificationType enumerates the notification variants.
type NotificationType string

const (
	NotificationRequest     NotificationType = "request"
	NotificationPostLike    NotificationType = "post-like"
	NotificationPostComment NotificationType = "post-comment"
	NotificationCommentLike NotificationType = "comment-like"
	NotificationReply       NotificationType = "reply"
	NotificationReplyLike   NotificationType = "reply-like"
)

// Notification is an entry in a user's notification feed.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	TypeID    string           `json:"typeId"`
	Message   string           `json:"message"`
	Sender    string           `json:"sender"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Relation request statuses, expressed from the viewer's side.
const (
	StatusSent     = "sent"
	StatusReceived = "received"
	StatusNone     = "none"
)

// RelationView is the derived relationship snapshot between a subject and a viewer.
type RelationView struct {
	SubjectID     string        `json:"subjectId"`
	ViewerID      string        `json:"viewerId"`
	IsFriend      bool          `json:"isFriend"`
	MutualFriends []UserSummary `json:"mutualFriends"`
	RequestStatus string        `json:"requestStatus"`
}

// FriendWithRelation is a friend record annotated with its relation to the requester.
type FriendWithRelation struct {
	UserSummary
	Relation RelationView `json:"relation"`
}

// PendingRequest is an incoming request annotated with the sender's relation to the receiver.
type PendingRequest struct {
	Request  FriendRequest `json:"request"`
	Sender   UserSummary   `json:"sender"`
	Relation RelationView  `json:"relation"`
}

// Profile is a user looked up by another account.
type Profile struct {
	User     UserSummary  `json:"user"`
	Relation RelationView `json:"relation"`
}
