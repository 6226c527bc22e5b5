package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/socialhub/backend/internal/auth"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Friends       FriendService
	Notifications NotificationService
	Relations     RelationComputer
	Health        map[string]Pinger

	// Realtime serves the websocket endpoint; optional.
	Realtime http.Handler

	AuthLimiter   RateLimiter
	FriendLimiter RateLimiter

	CookieName   string
	SecureCookie bool
}

// NewRouter wires HTTP handlers into a chi router.
func NewRouter(deps Dependencies) chi.Router {
	health := HealthHandler{Checks: deps.Health}
	authHandler := AuthHandler{
		Users:        deps.Users,
		Sessions:     deps.Sessions,
		Limiter:      deps.AuthLimiter,
		CookieName:   deps.CookieName,
		SecureCookie: deps.SecureCookie,
	}
	friends := FriendHandler{Friends: deps.Friends, Limiter: deps.FriendLimiter}
	notifications := NotificationHandler{Notifications: deps.Notifications}
	users := UserHandler{Users: deps.Users, Relations: deps.Relations}

	requireSession := auth.RequireSession(deps.Sessions, deps.CookieName)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Get("/healthz", health.Handle)
	if deps.Realtime != nil {
		r.Handle("/ws", deps.Realtime)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(requireSession).Get("/session", authHandler.Session)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireSession)

		r.Route("/friends", func(r chi.Router) {
			r.Get("/", friends.List)
			r.Post("/send-request", friends.SendRequest)
			r.Post("/accept-request", friends.AcceptRequest)
			r.Post("/reject-request", friends.RejectRequest)
			r.Post("/cancel-request", friends.CancelRequest)
			r.Get("/get-requests", friends.PendingRequests)
			r.Post("/{friendId}/unfriend", friends.Unfriend)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notifications.List)
			r.Post("/mark-all-read", notifications.MarkAllRead)
			r.Post("/clear-all", notifications.ClearAll)
			r.Post("/{notificationId}/mark-read", notifications.MarkRead)
		})

		r.Get("/users/{username}", users.Profile)
	})

	return r
}
