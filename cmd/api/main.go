package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/magnolia-blog/magnolia/internal/auth"
	"github.com/magnolia-blog/magnolia/internal/config"
	"github.com/magnolia-blog/magnolia/internal/github"
	"github.com/magnolia-blog/magnolia/internal/http/handler"
	"github.com/magnolia-blog/magnolia/internal/http/middleware"
	"github.com/magnolia-blog/magnolia/internal/http/router"
	"github.com/magnolia-blog/magnolia/internal/jobs"
	"github.com/magnolia-blog/magnolia/internal/kv"
	"github.com/magnolia-blog/magnolia/internal/logger"
	"github.com/magnolia-blog/magnolia/internal/repository"
	"github.com/magnolia-blog/magnolia/internal/service"
	"github.com/magnolia-blog/magnolia/internal/site"
	"github.com/magnolia-blog/magnolia/internal/storage"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Basic configuration first, for logging setup
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Secrets come from the environment in development and from Key Vault
	// in staging and production when enabled
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := kv.Open(kv.ConfigFrom(&cfg.KV), log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Error closing store", zap.Error(err))
		}
	}()

	publisher, err := storage.NewPublisher(&cfg.Site, log)
	if err != nil {
		return fmt.Errorf("failed to initialize site output: %w", err)
	}
	log.Info("Site output initialized", zap.String("mode", cfg.Site.OutputMode))

	generator, err := site.NewGenerator(site.ConfigFrom(&cfg.Site), publisher, log)
	if err != nil {
		return fmt.Errorf("failed to initialize site generator: %w", err)
	}

	// Repositories
	articleRepo := repository.NewArticleRepository(store)
	userRepo := repository.NewUserRepository(store)
	sessionRepo := repository.NewSessionRepository(store)
	buildRepo := repository.NewBuildRepository(store)

	// Services
	articleService := service.NewArticleService(articleRepo, cfg.Site.DefaultCategory, log)
	authService := service.NewAuthService(userRepo, sessionRepo, &cfg.Auth, log)
	buildService := service.NewBuildService(articleService, generator, publisher, buildRepo, cfg.Jobs.BuildTimeoutDuration(), log)

	if cfg.GitHub.Configured() {
		buildService.SetWorkflowClient(github.NewClient(&cfg.GitHub, nil))
		log.Info("GitHub workflow dispatch enabled",
			zap.String("repo", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo),
			zap.String("workflow", cfg.GitHub.Workflow),
		)
	}
	if cfg.Site.AutoBuild {
		articleService.SetChangeListener(buildService)
		buildService.Start()
		defer buildService.Stop()
	}

	if err := authService.EnsureAdminUser(ctx); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	// Background jobs
	scheduler := jobs.NewScheduler(log)
	if err := jobs.RegisterSessionCleanupJob(scheduler, authService, log, cfg.Jobs.SessionCleanupCron); err != nil {
		return fmt.Errorf("failed to register session cleanup job: %w", err)
	}
	if err := jobs.RegisterSiteBuildJob(scheduler, buildService, log, cfg.Jobs.SiteBuildCron, cfg.Jobs.BuildTimeoutDuration()); err != nil {
		return fmt.Errorf("failed to register site build job: %w", err)
	}
	scheduler.Start()

	// Middleware
	sessions := auth.NewMiddleware(authService, &cfg.Auth, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Handlers
	renderer, err := handler.NewRenderer(cfg.App.Name, log)
	if err != nil {
		return fmt.Errorf("failed to load page templates: %w", err)
	}
	healthHandler := handler.NewHealthHandler(store, log)
	authHandler := handler.NewAuthHandler(authService, sessions, renderer, log)
	pageHandler := handler.NewPageHandler(articleService, buildService, renderer, log)
	articleHandler := handler.NewArticleHandler(articleService, log)
	buildHandler := handler.NewBuildHandler(buildService, log)

	rt := router.NewRouter(
		cfg,
		log,
		sessions,
		rateLimiter,
		healthHandler,
		authHandler,
		pageHandler,
		articleHandler,
		buildHandler,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           rt.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeoutDuration(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		<-scheduler.Stop().Done()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		select {
		case <-scheduler.Stop().Done():
			log.Info("Scheduler stopped")
		case <-ctx.Done():
			log.Warn("Scheduler did not stop before the shutdown deadline")
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
