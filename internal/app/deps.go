package app

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/socialhub/backend/internal/auth"
	"github.com/socialhub/backend/internal/config"
	"github.com/socialhub/backend/internal/db"
	"github.com/socialhub/backend/internal/events"
	"github.com/socialhub/backend/internal/handlers"
	"github.com/socialhub/backend/internal/middleware"
	"github.com/socialhub/backend/internal/notifications"
	"github.com/socialhub/backend/internal/presence"
	"github.com/socialhub/backend/internal/realtime"
	"github.com/socialhub/backend/internal/relations"
	"github.com/socialhub/backend/internal/repositories"
	"github.com/socialhub/backend/internal/requests"
)

// infrastructure holds the connections opened by serve. Any field may be nil
// when the configuration does not need it.
type infrastructure struct {
	pool      db.Pool
	redis     redis.UniversalClient
	publisher requests.Publisher
}

// components are the wired services shared by the HTTP and NATS entry points.
type components struct {
	handlers handlers.Dependencies
	presence *presence.Router
	content  *events.ContentConsumer
	sessions auth.SessionStore
}

type stores struct {
	users         repositories.UserRepository
	relations     repositories.RelationRepository
	notifications repositories.NotificationRepository
	sessions      auth.SessionStore
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(cfg config.Config, infra infrastructure) (components, error) {
	st, err := buildStores(cfg, infra)
	if err != nil {
		return components{}, err
	}

	router := presence.NewRouter()
	sessions := auth.NewManager(cfg.SessionTTL, st.sessions)
	engine := relations.NewEngine(st.users, st.relations)
	notifier := notifications.NewService(st.notifications, router)
	manager := requests.NewManager(requests.Dependencies{
		Users:         st.users,
		Relations:     st.relations,
		Engine:        engine,
		Notifications: notifier,
		Emitter:       router,
		Publisher:     infra.publisher,
	})

	limits := middleware.Limits{
		Requests: cfg.RateLimitRequests,
		Window:   cfg.RateLimitWindow,
		Burst:    cfg.RateLimitBurst,
	}

	ws := realtime.NewHandler(router, sessions, realtime.Options{
		CookieName:     cfg.SessionCookie,
		AllowedOrigins: cfg.AllowedOrigins,
		QueueSize:      cfg.ChannelBuffer,
	})

	return components{
		handlers: handlers.Dependencies{
			Users:         st.users,
			Sessions:      sessions,
			Friends:       manager,
			Notifications: notifier,
			Relations:     engine,
			Realtime:      ws,
			AuthLimiter:   middleware.NewKeyedRateLimiter(limits),
			FriendLimiter: middleware.NewKeyedRateLimiter(limits),
			CookieName:    cfg.SessionCookie,
			SecureCookie:  cfg.SecureCookie,
		},
		presence: router,
		sessions: st.sessions,
		content:  events.NewContentConsumer(notifier, events.NewCachingUserFinder(st.users, cfg.ActorCacheTTL), router),
	}, nil
}

func buildStores(cfg config.Config, infra infrastructure) (stores, error) {
	var st stores

	switch cfg.Store {
	case config.StoreMemory:
		relations := repositories.NewMemoryRelationRepository()
		notes := repositories.NewMemoryNotificationRepository()
		repositories.LinkMemoryStores(relations, notes)
		st.users = repositories.NewMemoryUserRepository()
		st.relations = relations
		st.notifications = notes
	default:
		if infra.pool == nil {
			return stores{}, errors.New("postgres store requires a database pool")
		}
		st.users = repositories.NewPostgresUserRepository(infra.pool)
		st.relations = repositories.NewPostgresRelationRepository(infra.pool)
		st.notifications = repositories.NewPostgresNotificationRepository(infra.pool)
	}

	switch cfg.SessionBackend {
	case config.StoreMemory:
		st.sessions = auth.NewInMemorySessionStore()
	case config.StorePostgres:
		if infra.pool == nil {
			return stores{}, errors.New("postgres sessions require a database pool")
		}
		st.sessions = repositories.NewPostgresSessionStore(infra.pool)
	default:
		if infra.redis == nil {
			return stores{}, errors.New("redis sessions require a redis client")
		}
		st.sessions = repositories.NewRedisSessionStore(infra.redis)
	}

	return st, nil
}
