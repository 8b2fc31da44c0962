package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionCleanupJobName is the scheduler name of the expired session sweep
const SessionCleanupJobName = "session_cleanup"

// SessionCleaner deletes expired sessions and reports how many were removed
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int, error)
}

// SessionCleanupJob removes sessions whose expiry has passed. Badger drops
// expired entries on its own, so this only catches records left behind by a
// changed TTL or a restored backup.
type SessionCleanupJob struct {
	sessions SessionCleaner
	logger   *zap.Logger
	timeout  time.Duration
}

func NewSessionCleanupJob(sessions SessionCleaner, logger *zap.Logger, timeout time.Duration) *SessionCleanupJob {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &SessionCleanupJob{sessions: sessions, logger: logger, timeout: timeout}
}

// Run executes one sweep
func (j *SessionCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	removed, err := j.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		j.logger.Error("session cleanup failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}
	if removed > 0 {
		j.logger.Info("expired sessions removed",
			zap.Int("removed", removed),
			zap.Duration("duration", time.Since(start)))
	}
}

// RegisterSessionCleanupJob adds the sweep to the scheduler. An empty
// expression leaves the job unregistered.
func RegisterSessionCleanupJob(scheduler *Scheduler, sessions SessionCleaner, logger *zap.Logger, cronExpr string) error {
	if cronExpr == "" {
		logger.Info("session cleanup job disabled")
		return nil
	}
	job := NewSessionCleanupJob(sessions, logger, time.Minute)
	return scheduler.AddJob(SessionCleanupJobName, cronExpr, job.Run)
}
