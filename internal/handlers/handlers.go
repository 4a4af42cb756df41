package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"couple-diary/internal/auth"
	"couple-diary/internal/diary"
	"couple-diary/internal/models"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
)

// Options configures Handlers.
type Options struct {
	TemplateDir    string
	SecureCookie   bool
	MaxUploadBytes int64
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	svc      *diary.Service
	sessions *auth.SessionManager
	logger   *slog.Logger
	opts     Options
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *diary.Service, sessions *auth.SessionManager, logger *slog.Logger, opts Options) *Handlers {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handlers{svc: svc, sessions: sessions, logger: logger, opts: opts}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware wraps handlers to require authentication.
// Sessions past the halfway point of their lifetime are renewed and the
// cookie is re-issued.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		user, err := h.validateSession(w, r, cookie.Value)
		if errors.Is(err, auth.ErrInvalidSession) {
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if err != nil {
			h.serverError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionUser returns the signed-in user without enforcing a session.
func (h *Handlers) sessionUser(w http.ResponseWriter, r *http.Request) *models.User {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	user, err := h.validateSession(w, r, cookie.Value)
	if err != nil && !errors.Is(err, auth.ErrInvalidSession) {
		h.logger.ErrorContext(r.Context(), "session validation failed", "error", err)
	}
	return user
}

func (h *Handlers) validateSession(w http.ResponseWriter, r *http.Request, value string) (*models.User, error) {
	user, renewed, err := h.sessions.Validate(r.Context(), value)
	if err != nil {
		return nil, err
	}
	if renewed != nil {
		h.setSessionCookie(w, renewed)
	}
	return user, nil
}

// Root sends signed-in users to their diary and everyone else to the login page.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	if h.sessionUser(w, r) != nil {
		http.Redirect(w, r, "/diary", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// AuthViewModel holds data for the login and signup pages.
type AuthViewModel struct {
	Error    string
	Username string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.sessionUser(w, r) != nil {
		http.Redirect(w, r, "/diary", http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", AuthViewModel{})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login.html", AuthViewModel{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	vm := AuthViewModel{Username: username}

	if username == "" || password == "" {
		vm.Error = "Username and password are required"
		h.render(w, r, http.StatusBadRequest, "login.html", vm)
		return
	}

	user, err := h.svc.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, diary.ErrInvalidCredentials) {
			vm.Error = "Invalid username or password"
			h.render(w, r, http.StatusBadRequest, "login.html", vm)
			return
		}
		h.serverError(w, r, err)
		return
	}

	cookie, err := h.sessions.Issue(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.setSessionCookie(w, cookie)

	h.logger.InfoContext(r.Context(), "user logged in", "user_id", user.ID)
	http.Redirect(w, r, "/diary", http.StatusFound)
}

// SignupForm renders the signup page.
func (h *Handlers) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup.html", AuthViewModel{})
}

// Signup creates an account and sends the user to the login page.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "signup.html", AuthViewModel{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	vm := AuthViewModel{Username: username}

	user, err := h.svc.SignUp(r.Context(), username, r.FormValue("password"))
	switch {
	case errors.Is(err, diary.ErrConflict):
		vm.Error = "Username already exists"
		h.render(w, r, http.StatusBadRequest, "signup.html", vm)
		return
	case errors.Is(err, diary.ErrValidation):
		vm.Error = validationMessage(err)
		h.render(w, r, http.StatusBadRequest, "signup.html", vm)
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user signed up", "user_id", user.ID)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Revoke(r.Context(), cookie.Value); err != nil && !errors.Is(err, auth.ErrInvalidSession) {
			h.logger.ErrorContext(r.Context(), "failed to delete session", "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, c *auth.Cookie) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    c.Value,
		Path:     "/",
		Expires:  c.ExpiresAt,
		MaxAge:   int(h.sessions.Duration().Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
