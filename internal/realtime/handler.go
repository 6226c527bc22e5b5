// Package realtime exposes the websocket endpoint that feeds the presence router.
package realtime

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/socialhub/backend/internal/auth"
	"github.com/socialhub/backend/internal/logging"
	"github.com/socialhub/backend/internal/presence"
)

// Registry tracks live channels.
type Registry interface {
	Register(ch presence.Channel, userID string)
	Unregister(channelID string)
}

// Options tune the per-connection pumps.
type Options struct {
	CookieName     string
	AllowedOrigins []string
	QueueSize      int
	PingInterval   time.Duration
	WriteWait      time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 32
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	return o
}

// Handler upgrades HTTP requests into presence channels. Anonymous clients are
// accepted and only receive broadcast events.
type Handler struct {
	registry Registry
	sessions auth.Resolver
	opts     Options
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler.
func NewHandler(registry Registry, sessions auth.Resolver, opts Options) *Handler {
	opts = opts.withDefaults()
	h := &Handler{registry: registry, sessions: sessions, opts: opts}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var userID string
	if h.sessions != nil {
		session, err := auth.SessionFromRequest(r, h.sessions, h.opts.CookieName)
		switch {
		case err == nil:
			userID = session.UserID
		case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrSessionExpired):
		default:
			logger.Error("resolve websocket session", "error", err)
		}
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newConn(uuid.NewString(), userID, ws, h.opts)
	h.registry.Register(c, userID)
	logger = logger.With("channel_id", c.id, "user_id", userID)
	logger.Info("websocket connected")

	ctx = logging.WithLogger(ctx, logger)
	go c.writePump(ctx)
	c.readPump()

	h.registry.Unregister(c.id)
	logger.Info("websocket disconnected")
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
