package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/magnolia-blog/magnolia/internal/config"
	"github.com/magnolia-blog/magnolia/internal/domain"
	"go.uber.org/zap"
)

const DefaultCookieName = "session_id"

// Mode selects how unauthenticated requests are answered
type Mode int

const (
	// ModeRedirect sends browsers to the login page
	ModeRedirect Mode = iota
	// ModeJSON answers 401 with an API error body
	ModeJSON
)

// SessionValidator resolves a session id to its session and user
type SessionValidator interface {
	ValidateSession(ctx context.Context, id string) (*domain.Session, *domain.User, error)
}

// Middleware handles session cookie authentication for HTTP requests
type Middleware struct {
	sessions     SessionValidator
	cookieName   string
	cookieSecure bool
	logger       *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(sessions SessionValidator, cfg *config.AuthConfig, logger *zap.Logger) *Middleware {
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	return &Middleware{
		sessions:     sessions,
		cookieName:   name,
		cookieSecure: cfg.CookieSecure,
		logger:       logger,
	}
}

// CookieName is the name of the session cookie
func (m *Middleware) CookieName() string {
	return m.cookieName
}

// SessionID returns the session id carried by the request, if any
func (m *Middleware) SessionID(r *http.Request) string {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// RequireSession rejects requests without a valid session cookie
func (m *Middleware) RequireSession(mode Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := m.resolve(r)
			if err != nil {
				if !errors.Is(err, errNoSession) {
					m.logger.Debug("session rejected",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Error(err),
					)
					m.ClearSessionCookie(w)
				}
				m.reject(w, r, mode)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), user)))
		})
	}
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, mode Mode) {
	if mode == ModeJSON {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(&domain.APIError{
			Type:   domain.ErrorTypeUnauthorized,
			Title:  "Unauthorized",
			Status: http.StatusUnauthorized,
			Detail: "a valid session is required",
		})
		return
	}

	target := "/login"
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// SetSessionCookie writes the session cookie, expiring with the session
func (m *Middleware) SetSessionCookie(w http.ResponseWriter, session *domain.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie in the browser
func (m *Middleware) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SafeNext returns next when it is a local absolute path, fallback otherwise
func SafeNext(next, fallback string) string {
	if next == "" {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return fallback
	}
	return next
}

var errNoSession = errors.New("no session")

// Optional attaches the user context when a valid session cookie is present
// and continues anonymously otherwise.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, err := m.resolve(r); err == nil {
			r = r.WithContext(WithUserContext(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) resolve(r *http.Request) (*UserContext, error) {
	id := m.SessionID(r)
	if id == "" {
		return nil, errNoSession
	}
	session, user, err := m.sessions.ValidateSession(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &UserContext{UserID: user.ID, Username: user.Username, SessionID: session.ID}, nil
}
