package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/kv"
	"github.com/magnolia-blog/magnolia/internal/metrics"
	"github.com/magnolia-blog/magnolia/internal/repository"
	"github.com/magnolia-blog/magnolia/internal/site"
	"github.com/magnolia-blog/magnolia/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Build triggers recorded in BuildRecord.Trigger
const (
	TriggerManual    = "manual"
	TriggerAuto      = "auto"
	TriggerScheduled = "scheduled"
	TriggerCLI       = "cli"
)

const (
	defaultRebuildDebounce = 2 * time.Second
	recordSaveTimeout      = 5 * time.Second
)

// SiteBuilder renders and publishes a set of articles
type SiteBuilder interface {
	Build(ctx context.Context, articles []domain.Article) (*site.Result, error)
}

// WorkflowClient dispatches and inspects the deployment workflow
type WorkflowClient interface {
	Dispatch(ctx context.Context) error
	LatestRun(ctx context.Context) (*domain.WorkflowRun, error)
	Run(ctx context.Context, id int64) (*domain.WorkflowRun, error)
}

// BuildService runs static site builds. Concurrent builds coalesce into one
// run; a background worker rebuilds the site after article changes.
type BuildService struct {
	articles  site.ArticleLister
	builder   SiteBuilder
	publisher storage.Publisher
	builds    *repository.BuildRepository
	workflow  WorkflowClient
	timeout   time.Duration
	debounce  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	group   singleflight.Group
	running chan struct{}

	requests  chan struct{}
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewBuildService(
	articles site.ArticleLister,
	builder SiteBuilder,
	publisher storage.Publisher,
	builds *repository.BuildRepository,
	timeout time.Duration,
	logger *zap.Logger,
) *BuildService {
	return &BuildService{
		articles:  articles,
		builder:   builder,
		publisher: publisher,
		builds:    builds,
		timeout:   timeout,
		debounce:  defaultRebuildDebounce,
		logger:    logger,
		now:       time.Now,
		running:   make(chan struct{}, 1),
		requests:  make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetWorkflowClient enables GitHub Actions dispatch. A nil client disables it.
func (s *BuildService) SetWorkflowClient(c WorkflowClient) {
	s.workflow = c
}

// SetDebounce changes how long the rebuild worker waits for further changes
func (s *BuildService) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Build renders and publishes the site. A call made while a build is running
// shares its result unless force is set, in which case it waits for the
// running build and starts a fresh one. A caller whose context ends while
// waiting gets ErrBuildInProgress; the build itself carries on.
func (s *BuildService) Build(ctx context.Context, trigger string, force bool) (*domain.BuildResponse, error) {
	if force {
		s.group.Forget("site")
	}
	ch := s.group.DoChan("site", func() (any, error) {
		return s.run(context.WithoutCancel(ctx), trigger)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		resp := *res.Val.(*domain.BuildResponse)
		return &resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrBuildInProgress, ctx.Err())
	}
}

func (s *BuildService) run(ctx context.Context, trigger string) (*domain.BuildResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrBuildInProgress, ctx.Err())
	}

	started := s.now()
	record := &domain.BuildRecord{StartedAt: started.UTC(), Trigger: trigger}

	result, err := s.build(ctx)
	finished := s.now()
	record.FinishedAt = finished.UTC()
	record.DurationMs = finished.Sub(started).Milliseconds()
	metrics.SiteBuildDuration.Observe(finished.Sub(started).Seconds())

	resp := &domain.BuildResponse{BuildTime: record.DurationMs}
	if err != nil {
		metrics.SiteBuilds.WithLabelValues("failure").Inc()
		record.Error = err.Error()
		resp.Message = "site build failed"
		resp.Error = err.Error()
		s.logger.Error("site build failed", zap.String("trigger", trigger), zap.Error(err))
	} else {
		metrics.SiteBuilds.WithLabelValues("success").Inc()
		metrics.SitePages.Set(float64(result.Pages))
		record.Success = true
		record.Pages = result.Pages
		record.Removed = result.Removed
		resp.Success = true
		resp.Message = "site build completed"
		resp.GeneratedPages = result.Pages
		resp.RemovedPages = result.Removed
		s.logger.Info("site build completed",
			zap.String("trigger", trigger),
			zap.Int("pages", result.Pages),
			zap.Int("removed", result.Removed),
			zap.Int64("duration_ms", record.DurationMs),
		)
	}

	// the build context may already be past its deadline
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordSaveTimeout)
	defer cancel()
	if saveErr := s.builds.SaveLast(saveCtx, record); saveErr != nil {
		s.logger.Warn("failed to record build", zap.Error(saveErr))
	}
	return resp, nil
}

func (s *BuildService) build(ctx context.Context) (*site.Result, error) {
	articles, err := s.articles.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}
	return s.builder.Build(ctx, articles)
}

// Status reports the published page count and the last build record
func (s *BuildService) Status(ctx context.Context) (*domain.BuildStatusResponse, error) {
	files, err := s.publisher.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list published files: %w", err)
	}

	status := &domain.BuildStatusResponse{}
	for _, f := range files {
		if strings.HasSuffix(f, ".html") {
			status.GeneratedPages++
		}
	}

	last, err := s.builds.GetLast(ctx)
	switch {
	case err == nil:
		status.LastBuild = last
	case !errors.Is(err, kv.ErrNotFound):
		return nil, fmt.Errorf("failed to load last build: %w", err)
	}
	return status, nil
}

// TriggerWorkflow dispatches the deployment workflow and returns the id of the
// latest run, which is zero when the run could not be looked up yet.
func (s *BuildService) TriggerWorkflow(ctx context.Context) (*domain.BuildResponse, error) {
	if s.workflow == nil {
		return nil, ErrGitHubNotConfigured
	}
	if err := s.workflow.Dispatch(ctx); err != nil {
		return nil, fmt.Errorf("failed to dispatch workflow: %w", err)
	}

	resp := &domain.BuildResponse{Success: true, Message: "GitHub Actions workflow triggered"}
	run, err := s.workflow.LatestRun(ctx)
	if err != nil {
		s.logger.Warn("workflow dispatched but latest run lookup failed", zap.Error(err))
		return resp, nil
	}
	resp.WorkflowRunID = run.ID
	s.logger.Info("workflow dispatched", zap.Int64("run_id", run.ID))
	return resp, nil
}

func (s *BuildService) WorkflowStatus(ctx context.Context, runID int64) (*domain.WorkflowRun, error) {
	if s.workflow == nil {
		return nil, ErrGitHubNotConfigured
	}
	run, err := s.workflow.Run(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow run %d: %w", runID, err)
	}
	return run, nil
}

// RequestRebuild schedules a rebuild without blocking. Requests made while one
// is already pending are merged.
func (s *BuildService) RequestRebuild() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// Start runs the rebuild worker until Stop is called
func (s *BuildService) Start() {
	s.startOnce.Do(func() {
		go s.worker()
		s.logger.Info("rebuild worker started", zap.Duration("debounce", s.debounce))
	})
}

// Stop stops the rebuild worker and waits for a running build to finish.
// After Stop, Start has no effect.
func (s *BuildService) Stop() {
	s.stopOnce.Do(func() {
		s.startOnce.Do(func() { close(s.done) })
		close(s.stop)
		<-s.done
		s.logger.Info("rebuild worker stopped")
	})
}

func (s *BuildService) worker() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-s.requests:
		}

		// wait until changes settle
		timer := time.NewTimer(s.debounce)
	settle:
		for {
			select {
			case <-s.stop:
				timer.Stop()
				return
			case <-s.requests:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(s.debounce)
			case <-timer.C:
				break settle
			}
		}

		if _, err := s.Build(context.Background(), TriggerAuto, false); err != nil {
			s.logger.Error("automatic rebuild failed", zap.Error(err))
		}
	}
}
