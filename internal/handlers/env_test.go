package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/socialhub/backend/internal/auth"
	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/notifications"
	"github.com/socialhub/backend/internal/presence"
	"github.com/socialhub/backend/internal/relations"
	"github.com/socialhub/backend/internal/repositories"
	"github.com/socialhub/backend/internal/requests"
)

const testCookie = "socialhub_session"

type testEnv struct {
	users         *repositories.MemoryUserRepository
	relations     *repositories.MemoryRelationRepository
	notifications *notifications.Service
	sessionStore  *auth.InMemorySessionStore
	sessions      *auth.Manager
	router        http.Handler
	cookies       map[string]*http.Cookie
}

type envOption func(*Dependencies)

func newTestEnv(t *testing.T, usernames []string, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		users:        repositories.NewMemoryUserRepository(),
		relations:    repositories.NewMemoryRelationRepository(),
		sessionStore: auth.NewInMemorySessionStore(),
		cookies:      make(map[string]*http.Cookie),
	}
	env.sessions = auth.NewManager(time.Hour, env.sessionStore)

	presenceRouter := presence.NewRouter()
	engine := relations.NewEngine(env.users, env.relations)
	notes := repositories.NewMemoryNotificationRepository()
	repositories.LinkMemoryStores(env.relations, notes)
	env.notifications = notifications.NewService(notes, presenceRouter)
	manager := requests.NewManager(requests.Dependencies{
		Users:         env.users,
		Relations:     env.relations,
		Engine:        engine,
		Notifications: env.notifications,
		Emitter:       presenceRouter,
	})

	deps := Dependencies{
		Users:         env.users,
		Sessions:      env.sessions,
		Friends:       manager,
		Notifications: env.notifications,
		Relations:     engine,
		CookieName:    testCookie,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.router = NewRouter(deps)

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	for _, name := range usernames {
		user := models.User{ID: "u-" + name, Username: name, Email: name + "@example.com", Password: string(hashed)}
		if err := env.users.Create(context.Background(), user); err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
		session, err := env.sessions.Issue(context.Background(), user)
		if err != nil {
			t.Fatalf("issue session: %v", err)
		}
		env.cookies[name] = &http.Cookie{Name: testCookie, Value: session.ID}
	}

	return env
}

// do sends a request as the named user; an empty name sends it anonymously.
func (e *testEnv) do(t *testing.T, as, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie, ok := e.cookies[as]; ok {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, dst any) testEnvelope {
	t.Helper()

	var env testEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if dst != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d got %d: %s", want, rec.Code, rec.Body.String())
	}
}

type denyLimiter struct{ keys []string }

func (l *denyLimiter) Allow(key string) bool {
	l.keys = append(l.keys, key)
	return false
}
