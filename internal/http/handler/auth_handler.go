package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/magnolia-blog/magnolia/internal/auth"
	"github.com/magnolia-blog/magnolia/internal/service"
	"go.uber.org/zap"
)

const loginRedirect = "/articles"

type loginData struct {
	Username string
	Next     string
}

// AuthHandler serves the login and logout pages
type AuthHandler struct {
	authService *service.AuthService
	sessions    *auth.Middleware
	renderer    *Renderer
	logger      *zap.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	sessions *auth.Middleware,
	renderer *Renderer,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		renderer:    renderer,
		logger:      logger,
	}
}

// LoginPage handles GET /login. Signed-in users are sent on to the admin.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := auth.SafeNext(r.URL.Query().Get("next"), loginRedirect)
	if _, ok := auth.FromContext(r.Context()); ok {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}

	if err := h.authService.EnsureAdminUser(r.Context()); err != nil {
		h.logger.Error("failed to ensure admin user", zap.Error(err))
	}
	h.renderLogin(w, r, http.StatusOK, loginData{Next: next}, "")
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, loginData{Next: loginRedirect}, "Invalid form submission")
		return
	}

	data := loginData{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Next:     auth.SafeNext(r.PostForm.Get("next"), loginRedirect),
	}
	password := r.PostForm.Get("password")
	if data.Username == "" || password == "" {
		h.renderLogin(w, r, http.StatusBadRequest, data, "Username and password are required")
		return
	}

	session, err := h.authService.Login(r.Context(), data.Username, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.renderLogin(w, r, http.StatusUnauthorized, data, "Invalid username or password")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		h.renderLogin(w, r, http.StatusInternalServerError, data, "Login failed, please try again")
		return
	}

	h.sessions.SetSessionCookie(w, session)
	http.Redirect(w, r, data.Next, http.StatusFound)
}

// Logout handles GET and POST /logout. The cookie is cleared even when the
// session cannot be deleted.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := h.sessions.SessionID(r); id != "" {
		if err := h.authService.DeleteSession(r.Context(), id); err != nil {
			h.logger.Warn("failed to delete session on logout", zap.Error(err))
		}
	}
	h.sessions.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginData, message string) {
	h.renderer.Render(w, r, status, "login.html", PageData{Title: "Log in", Error: message, Data: data})
}
