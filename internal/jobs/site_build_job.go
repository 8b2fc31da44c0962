package jobs

import (
	"context"
	"time"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/service"
	"go.uber.org/zap"
)

// SiteBuildJobName is the scheduler name of the periodic site rebuild
const SiteBuildJobName = "site_build"

// SiteBuilder runs a static site build
type SiteBuilder interface {
	Build(ctx context.Context, trigger string, force bool) (*domain.BuildResponse, error)
}

// SiteBuildJob regenerates the static site on a schedule
type SiteBuildJob struct {
	builder SiteBuilder
	logger  *zap.Logger
	timeout time.Duration
}

func NewSiteBuildJob(builder SiteBuilder, logger *zap.Logger, timeout time.Duration) *SiteBuildJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &SiteBuildJob{builder: builder, logger: logger, timeout: timeout}
}

// Run executes one build. It joins a build that is already in progress
// instead of forcing a new one.
func (j *SiteBuildJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	resp, err := j.builder.Build(ctx, service.TriggerScheduled, false)
	switch {
	case err != nil:
		j.logger.Error("scheduled site build failed", zap.Error(err))
	case !resp.Success:
		j.logger.Warn("scheduled site build reported failure", zap.String("error", resp.Error))
	default:
		j.logger.Info("scheduled site build completed",
			zap.Int("pages", resp.GeneratedPages),
			zap.Int("removed", resp.RemovedPages),
			zap.Int64("build_time_ms", resp.BuildTime))
	}
}

// RegisterSiteBuildJob adds the periodic build. An empty expression leaves
// the job unregistered.
func RegisterSiteBuildJob(scheduler *Scheduler, builder SiteBuilder, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	if cronExpr == "" {
		return nil
	}
	job := NewSiteBuildJob(builder, logger, timeout)
	return scheduler.AddJob(SiteBuildJobName, cronExpr, job.Run)
}
