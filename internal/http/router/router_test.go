package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/magnolia-blog/magnolia/internal/auth"
	"github.com/magnolia-blog/magnolia/internal/config"
	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/http/handler"
	"github.com/magnolia-blog/magnolia/internal/http/middleware"
	"github.com/magnolia-blog/magnolia/internal/http/router"
	"github.com/magnolia-blog/magnolia/internal/kv"
	"github.com/magnolia-blog/magnolia/internal/repository"
	"github.com/magnolia-blog/magnolia/internal/service"
	"github.com/magnolia-blog/magnolia/internal/site"
	"github.com/magnolia-blog/magnolia/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	handler   http.Handler
	publisher *storage.MemoryStorage
	cookie    *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()

	store, err := kv.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		App:    config.AppConfig{Name: "Magnolia", Environment: "development"},
		Auth:   config.AuthConfig{AdminUsername: "admin", AdminPassword: "s3cret", SessionTTL: 3600, BcryptCost: bcrypt.MinCost},
		Server: config.ServerConfig{EnableMetrics: true},
	}

	articleService := service.NewArticleService(repository.NewArticleRepository(store), "Uncategorized", logger)
	authService := service.NewAuthService(repository.NewUserRepository(store), repository.NewSessionRepository(store), &cfg.Auth, logger)
	require.NoError(t, authService.EnsureAdminUser(context.Background()))

	pub := storage.NewMemoryStorage()
	gen, err := site.NewGenerator(site.Config{Title: "Test", PageSize: 10, RelatedLimit: 4}, pub, logger)
	require.NoError(t, err)
	buildService := service.NewBuildService(articleService, gen, pub, repository.NewBuildRepository(store), time.Minute, logger)

	renderer, err := handler.NewRenderer(cfg.App.Name, logger)
	require.NoError(t, err)
	sessions := auth.NewMiddleware(authService, &cfg.Auth, logger)

	rt := router.NewRouter(
		cfg,
		logger,
		sessions,
		middleware.NewRateLimiter(&cfg.RateLimit, logger),
		handler.NewHealthHandler(store, logger),
		handler.NewAuthHandler(authService, sessions, renderer, logger),
		handler.NewPageHandler(articleService, buildService, renderer, logger),
		handler.NewArticleHandler(articleService, logger),
		handler.NewBuildHandler(buildService, logger),
	)
	return &testServer{handler: rt.Setup(), publisher: pub}
}

func (s *testServer) do(t *testing.T, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(t *testing.T, method, target string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if v != nil {
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	return s.do(t, method, target, body, "application/json")
}

func (s *testServer) form(t *testing.T, target string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, target, []byte(values.Encode()), "application/x-www-form-urlencoded")
}

func (s *testServer) login(t *testing.T) {
	t.Helper()
	w := s.form(t, "/login", url.Values{"username": {"admin"}, "password": {"s3cret"}})
	require.Equal(t, http.StatusFound, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.DefaultCookieName {
			s.cookie = c
		}
	}
	require.NotNil(t, s.cookie)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil, "").Code)

	w := s.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")

	w = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestUnauthenticatedAccess(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/articles", nil, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Farticles", w.Header().Get("Location"))

	w = s.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = s.json(t, http.MethodGet, "/api/articles", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.json(t, http.MethodPost, "/api/build", map[string]bool{"force": true})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.cookie = &http.Cookie{Name: auth.DefaultCookieName, Value: "forged"}
	w = s.json(t, http.MethodGet, "/api/articles", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/login?next=/articles/new", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="next" value="/articles/new"`)

	w = s.form(t, "/login", url.Values{"username": {""}, "password": {""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Username and password are required")

	w = s.form(t, "/login", url.Values{"username": {"admin"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password")
	assert.Contains(t, w.Body.String(), `value="admin"`)

	w = s.form(t, "/login", url.Values{"username": {"admin"}, "password": {"s3cret"}, "next": {"https://evil.example/"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/articles", w.Header().Get("Location"))

	w = s.form(t, "/login", url.Values{"username": {"admin"}, "password": {"s3cret"}, "next": {"/articles/new"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/articles/new", w.Header().Get("Location"))

	s.login(t)
	assert.True(t, s.cookie.HttpOnly)

	w = s.do(t, http.MethodGet, "/login", nil, "")
	assert.Equal(t, http.StatusFound, w.Code)

	w = s.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dashboard")

	w = s.do(t, http.MethodPost, "/logout", nil, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = s.json(t, http.MethodGet, "/api/articles", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.cookie = nil
	w = s.do(t, http.MethodGet, "/logout", nil, "")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestArticleAPI(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.json(t, http.MethodPost, "/api/articles", map[string]any{
		"slug":     "hello-world",
		"title":    "Hello World",
		"pub_date": "2024-01-02",
		"category": "news",
		"tags":     []string{"go", "web"},
		"body":     "# Hello",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.Article](t, w)
	assert.Equal(t, "/api/articles/"+created.ID, w.Header().Get("Location"))
	assert.Equal(t, []string{"go", "web"}, created.Tags)

	w = s.json(t, http.MethodPost, "/api/articles", map[string]any{
		"slug": "hello-world", "title": "Again", "body": "x",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.json(t, http.MethodPost, "/api/articles", map[string]any{
		"slug": "Not A Slug!", "title": "", "body": "x",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decode[domain.APIError](t, w)
	assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
	assert.Contains(t, apiErr.Errors, "slug")
	assert.Contains(t, apiErr.Errors, "title")

	w = s.do(t, http.MethodPost, "/api/articles", []byte("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(t, http.MethodGet, "/api/articles/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.json(t, http.MethodGet, "/api/articles/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.json(t, http.MethodPut, "/api/articles/"+created.ID, map[string]any{"category": "tech"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tech", decode[domain.Article](t, w).Category)

	w = s.json(t, http.MethodPut, "/api/articles/missing", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.json(t, http.MethodGet, "/api/articles?category=tech", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[domain.ArticleListResponse](t, w)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, service.DefaultPageSize, list.Limit)

	w = s.json(t, http.MethodGet, "/api/articles?category=news", nil)
	assert.Zero(t, decode[domain.ArticleListResponse](t, w).Total)

	w = s.json(t, http.MethodDelete, "/api/articles/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.json(t, http.MethodDelete, "/api/articles/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicAPI(t *testing.T) {
	s := newTestServer(t)
	s.login(t)
	for _, slug := range []string{"one", "two"} {
		w := s.json(t, http.MethodPost, "/api/articles", map[string]any{"slug": slug, "title": slug, "body": "b", "tags": []string{"go"}})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	s.cookie = nil

	req := httptest.NewRequest(http.MethodGet, "/api/public/articles?tag=go", nil)
	req.Header.Set("Origin", "https://blog.example.com")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	list := decode[domain.ArticleListResponse](t, w)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, handler.PublicDefaultLimit, list.Limit)

	req = httptest.NewRequest(http.MethodOptions, "/api/public/articles", nil)
	req.Header.Set("Origin", "https://blog.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminPages(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.do(t, http.MethodGet, "/articles/new", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.form(t, "/articles/new", url.Values{
		"title":    {"My First Post"},
		"category": {"diary"},
		"tags[]":   {"go", " ", "go"},
		"tags":     {"web, cli"},
		"body":     {"Hello"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/articles?success=created", w.Header().Get("Location"))

	w = s.json(t, http.MethodGet, "/api/articles", nil)
	list := decode[domain.ArticleListResponse](t, w)
	require.Len(t, list.Articles, 1)
	article := list.Articles[0]
	assert.Equal(t, "my-first-post", article.Slug)
	assert.Equal(t, []string{"go", "web", "cli"}, article.Tags)

	w = s.do(t, http.MethodGet, "/articles?success=created", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Article created")
	assert.Contains(t, w.Body.String(), "My First Post")

	w = s.form(t, "/articles/new", url.Values{"title": {"My First Post"}, "body": {"dup"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = s.form(t, "/articles/new", url.Values{"title": {"Bad"}, "slug": {"bad slug"}, "body": {""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please fix the highlighted fields")
	assert.Contains(t, w.Body.String(), `value="Bad"`)

	w = s.do(t, http.MethodGet, "/articles/"+article.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/articles/"+article.ID+"/edit", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="go, web, cli"`)

	w = s.form(t, "/articles/"+article.ID+"/edit", url.Values{
		"title": {"Renamed"}, "slug": {"renamed"}, "category": {"diary"}, "tags": {"go"}, "body": {"Updated"},
		"pub_date": {article.PubDate.UTC().Format("2006-01-02")},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/articles?success=updated", w.Header().Get("Location"))

	w = s.json(t, http.MethodGet, "/api/articles/"+article.ID, nil)
	updated := decode[domain.Article](t, w)
	assert.Equal(t, "renamed", updated.Slug)
	assert.True(t, article.PubDate.Equal(updated.PubDate))

	w = s.do(t, http.MethodGet, "/articles/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.form(t, "/articles/"+article.ID+"/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/articles?success=deleted", w.Header().Get("Location"))
}

func TestBuildAPI(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.json(t, http.MethodPost, "/api/articles", map[string]any{"slug": "post", "title": "Post", "body": "b", "category": "news"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.json(t, http.MethodPost, "/api/build", map[string]bool{"force": true})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[domain.BuildResponse](t, w)
	assert.True(t, resp.Success, resp.Error)
	assert.Positive(t, resp.GeneratedPages)

	_, ok := s.publisher.Get("articles/post.html")
	assert.True(t, ok)

	w = s.json(t, http.MethodGet, "/api/build", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[domain.BuildStatusResponse](t, w)
	assert.Positive(t, status.GeneratedPages)
	assert.LessOrEqual(t, status.GeneratedPages, resp.GeneratedPages)
	require.NotNil(t, status.LastBuild)
	assert.Equal(t, service.TriggerManual, status.LastBuild.Trigger)

	w = s.json(t, http.MethodGet, "/api/build?runId=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(t, http.MethodPost, "/api/build", map[string]bool{"trigger_github_actions": true})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")

	w = s.do(t, http.MethodPost, "/api/build", nil, "application/json")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/build", nil, "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?build=ok", w.Header().Get("Location"))

	w = s.do(t, http.MethodGet, "/?build=ok", nil, "")
	assert.True(t, strings.Contains(w.Body.String(), "Site build completed"))
}
