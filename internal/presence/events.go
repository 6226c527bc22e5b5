package presence

// Live event names delivered to clients.
const (
	EventNotificationUpdate   = "notification-update"
	EventNotificationMarkRead = "notification-mark-read"
	EventNotificationRemove   = "notification-remove"

	EventRequestReceived          = "request-received"
	EventRequestSent              = "request-sent"
	EventRequestAcceptedUser      = "request-accepted-user"
	EventRequestAcceptedSender    = "request-accepted-sender"
	EventRequestRejectedUser      = "request-rejected-user"
	EventRequestRejectedSender    = "request-rejected-sender"
	EventRequestCancelledUser     = "request-cancelled-user"
	EventRequestCancelledReceiver = "request-cancelled-receiver"

	EventUnfriendUser   = "unfriend-user"
	EventUnfriendFriend = "unfriend-friend"

	EventPostCreateUser   = "post-create-user-update"
	EventPostCreateGlobal = "post-create-global-update"
)
