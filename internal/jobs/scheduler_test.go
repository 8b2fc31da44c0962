package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestScheduler_AddRemove(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("b", "0 0 * * * *", func() {}))
	require.NoError(t, s.AddJob("a", "*/5 * * * *", func() {}))
	require.NoError(t, s.AddJob("c", "@every 1h", func() {}))

	err := s.AddJob("a", "@hourly", func() {})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob("bad", "not a cron", func() {})
	assert.ErrorContains(t, err, "failed to add job bad")

	assert.Equal(t, []string{"a", "b", "c"}, s.GetJobNames())

	require.NoError(t, s.RemoveJob("b"))
	assert.Error(t, s.RemoveJob("b"))
	assert.Equal(t, []string{"a", "c"}, s.GetJobNames())
	assert.True(t, s.NextRun("b").IsZero())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var runs atomic.Int32
	require.NoError(t, s.AddJob("tick", "* * * * * *", func() { runs.Add(1) }))

	s.Start()
	assert.False(t, s.NextRun("tick").IsZero())
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)

	select {
	case <-s.Stop().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := NewScheduler(zap.New(core))
	require.NoError(t, s.AddJob("boom", "* * * * * *", func() { panic("boom") }))

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return logs.FilterMessage("panic").Len() > 0 }, 3*time.Second, 20*time.Millisecond)
}

type fakeCleaner struct {
	removed int
	err     error
	calls   int
}

func (f *fakeCleaner) CleanupExpiredSessions(ctx context.Context) (int, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("missing deadline")
	}
	return f.removed, f.err
}

func TestSessionCleanupJob(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cleaner := &fakeCleaner{removed: 3}

	NewSessionCleanupJob(cleaner, zap.New(core), 0).Run()
	require.Equal(t, 1, logs.FilterMessage("expired sessions removed").Len())
	assert.Equal(t, int64(3), logs.All()[0].ContextMap()["removed"])

	cleaner.err = errors.New("store closed")
	NewSessionCleanupJob(cleaner, zap.New(core), time.Second).Run()
	assert.Equal(t, 1, logs.FilterMessage("session cleanup failed").Len())
	assert.Equal(t, 2, cleaner.calls)
}

func TestRegisterSessionCleanupJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	require.NoError(t, RegisterSessionCleanupJob(s, &fakeCleaner{}, zap.NewNop(), ""))
	assert.Empty(t, s.GetJobNames())

	require.NoError(t, RegisterSessionCleanupJob(s, &fakeCleaner{}, zap.NewNop(), "0 0 * * * *"))
	assert.Equal(t, []string{SessionCleanupJobName}, s.GetJobNames())
}

type fakeBuilder struct {
	resp    *domain.BuildResponse
	err     error
	trigger string
	force   bool
}

func (f *fakeBuilder) Build(_ context.Context, trigger string, force bool) (*domain.BuildResponse, error) {
	f.trigger, f.force = trigger, force
	return f.resp, f.err
}

func TestSiteBuildJob(t *testing.T) {
	tests := []struct {
		name    string
		builder *fakeBuilder
		level   zapcore.Level
		message string
	}{
		{
			name:    "success",
			builder: &fakeBuilder{resp: &domain.BuildResponse{Success: true, GeneratedPages: 12}},
			level:   zapcore.InfoLevel,
			message: "scheduled site build completed",
		},
		{
			name:    "build failure",
			builder: &fakeBuilder{resp: &domain.BuildResponse{Success: false, Error: "template"}},
			level:   zapcore.WarnLevel,
			message: "scheduled site build reported failure",
		},
		{
			name:    "error",
			builder: &fakeBuilder{err: service.ErrBuildInProgress},
			level:   zapcore.ErrorLevel,
			message: "scheduled site build failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			NewSiteBuildJob(tt.builder, zap.New(core), 0).Run()

			entries := logs.FilterMessage(tt.message).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.Equal(t, service.TriggerScheduled, tt.builder.trigger)
			assert.False(t, tt.builder.force)
		})
	}
}

func TestRegisterSiteBuildJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	require.NoError(t, RegisterSiteBuildJob(s, &fakeBuilder{}, zap.NewNop(), "", time.Minute))
	assert.Empty(t, s.GetJobNames())

	require.NoError(t, RegisterSiteBuildJob(s, &fakeBuilder{}, zap.NewNop(), "@daily", time.Minute))
	assert.Equal(t, []string{SiteBuildJobName}, s.GetJobNames())
}
