package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/magnolia-blog/magnolia/internal/auth"
	"github.com/magnolia-blog/magnolia/internal/config"
	"github.com/magnolia-blog/magnolia/internal/http/handler"
	"github.com/magnolia-blog/magnolia/internal/http/middleware"
	"github.com/magnolia-blog/magnolia/internal/metrics"
	"go.uber.org/zap"
)

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	healthHandler  *handler.HealthHandler
	authHandler    *handler.AuthHandler
	pageHandler    *handler.PageHandler
	articleHandler *handler.ArticleHandler
	buildHandler   *handler.BuildHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	healthHandler *handler.HealthHandler,
	authHandler *handler.AuthHandler,
	pageHandler *handler.PageHandler,
	articleHandler *handler.ArticleHandler,
	buildHandler *handler.BuildHandler,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		healthHandler:  healthHandler,
		authHandler:    authHandler,
		pageHandler:    pageHandler,
		articleHandler: articleHandler,
		buildHandler:   buildHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(rt.rateLimiter.Limit)
	if d := rt.cfg.Server.RequestTimeoutDuration(); d > 0 {
		r.Use(chimw.Timeout(d))
	}

	r.Get("/health", rt.healthHandler.Health)
	r.Get("/health/ready", rt.healthHandler.Ready)
	if rt.cfg.Server.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	// Login and logout
	r.With(rt.authMiddleware.Optional).Get("/login", rt.authHandler.LoginPage)
	r.With(rt.rateLimiter.LimitLogin).Post("/login", rt.authHandler.Login)
	r.Get("/logout", rt.authHandler.Logout)
	r.Post("/logout", rt.authHandler.Logout)

	// Public article API, readable from any origin
	r.Route("/api/public", func(r chi.Router) {
		r.Use(middleware.PublicCORS())
		r.Get("/articles", rt.articleHandler.PublicList)
	})

	// Admin JSON API
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
		r.Use(rt.authMiddleware.RequireSession(auth.ModeJSON))

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", rt.articleHandler.List)
			r.Post("/", rt.articleHandler.Create)
			r.Get("/{id}", rt.articleHandler.GetByID)
			r.Put("/{id}", rt.articleHandler.Update)
			r.Delete("/{id}", rt.articleHandler.Delete)
		})

		r.Get("/build", rt.buildHandler.Status)
		r.Post("/build", rt.buildHandler.Trigger)
	})

	// Admin UI
	r.Group(func(r chi.Router) {
		r.Use(rt.authMiddleware.RequireSession(auth.ModeRedirect))

		r.Get("/", rt.pageHandler.Dashboard)
		r.Post("/build", rt.pageHandler.Build)

		r.Get("/articles", rt.pageHandler.ListArticles)
		r.Get("/articles/new", rt.pageHandler.NewArticle)
		r.Post("/articles/new", rt.pageHandler.CreateArticle)
		r.Get("/articles/{id}", rt.pageHandler.ShowArticle)
		r.Get("/articles/{id}/edit", rt.pageHandler.EditArticle)
		r.Post("/articles/{id}/edit", rt.pageHandler.UpdateArticle)
		r.Post("/articles/{id}/delete", rt.pageHandler.DeleteArticle)
	})

	return r
}
