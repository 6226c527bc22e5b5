package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/socialhub/backend/internal/auth"
	"github.com/socialhub/backend/internal/logging"
	"github.com/socialhub/backend/internal/models"
	"github.com/socialhub/backend/internal/repositories"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,32}$`)

// AuthHandler implements cookie-session authentication endpoints.
type AuthHandler struct {
	Users        UserStore
	Sessions     SessionManager
	Limiter      RateLimiter
	CookieName   string
	SecureCookie bool
	NowFunc      func() time.Time
}

// SignUp handles POST /auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "signup") {
		logger.Warn("signup rate limited", "ip", clientIP(r))
		respondFailure(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondFailure(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		logger.Warn("signup missing fields", "username", req.Username, "email", req.Email)
		respondFailure(ctx, w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	if !usernamePattern.MatchString(req.Username) {
		respondFailure(ctx, w, http.StatusBadRequest, "username must be 3-32 letters, digits, '_' or '.'")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("signup invalid email", "email", req.Email, "error", err)
		respondFailure(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	if len(req.Password) < 8 {
		respondFailure(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondFailure(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondFailure(ctx, w, http.StatusConflict, "username or email already in use")
			return
		}
		logger.Error("signup failed to create user", "error", err, "email", req.Email)
		respondFailure(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	if !h.startSession(w, r, user) {
		return
	}

	logger.Info("account created", "user_id", user.ID)
	respondData(ctx, w, http.StatusCreated, user.Summary())
}

// Login handles POST /auth/login requests. The login field accepts either a
// username or an email address.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "ip", clientIP(r))
		respondFailure(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondFailure(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		respondFailure(ctx, w, http.StatusBadRequest, "login and password are required")
		return
	}

	var (
		user models.User
		err  error
	)
	if strings.Contains(req.Login, "@") {
		user, err = h.Users.FindByEmail(ctx, strings.ToLower(req.Login))
	} else {
		user, err = h.Users.FindByUsername(ctx, req.Login)
	}
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login user lookup failed", "error", err)
			respondFailure(ctx, w, http.StatusInternalServerError, "unable to sign in")
			return
		}
		respondFailure(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "user_id", user.ID)
		respondFailure(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !h.startSession(w, r, user) {
		return
	}

	respondData(ctx, w, http.StatusOK, user.Summary())
}

// Logout handles POST /auth/logout. It succeeds even without a session.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cookie, err := r.Cookie(h.CookieName); err == nil && cookie.Value != "" {
		h.Sessions.Revoke(ctx, cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	respondData(ctx, w, http.StatusOK, true)
}

// Session handles GET /auth/session.
func (h AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondFailure(r.Context(), w, http.StatusUnauthorized, "authentication required")
		return
	}

	respondData(r.Context(), w, http.StatusOK, sessionResponse{
		User:      models.UserSummary{ID: session.UserID, Username: session.Username},
		ExpiresAt: session.ExpiresAt,
	})
}

func (h AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user models.User) bool {
	ctx := r.Context()

	session, err := h.Sessions.Issue(ctx, user)
	if err != nil {
		logging.FromContext(ctx).Error("failed to issue session", "error", err, "user_id", user.ID)
		respondFailure(ctx, w, http.StatusInternalServerError, "failed to create session")
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(h.Sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      models.UserSummary `json:"user"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
