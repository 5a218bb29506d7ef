package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	runs    atomic.Int32
	release chan struct{}
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	<-j.release
	return nil
}

type deadlineJob struct {
	hadDeadline bool
}

func (j *deadlineJob) Name() string { return "deadline" }

func (j *deadlineJob) Run(ctx context.Context) error {
	_, j.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestAdd(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{release: make(chan struct{})}

	require.NoError(t, s.Add(Entry{Job: job}))
	require.Equal(t, 0, s.Len())

	require.Error(t, s.Add(Entry{Job: job, Spec: "not a cron line"}))
	require.Error(t, s.Add(Entry{Spec: "*/5 * * * *"}))
	require.NoError(t, s.Add(Entry{Job: job, Spec: "*/5 * * * *"}))
	require.Equal(t, 1, s.Len())
	require.Error(t, s.Add(Entry{Job: job, Spec: "*/5 * * * *"}))

	_, ok := s.Stats("missing")
	require.False(t, ok)
}

func TestRunOnceSkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{release: make(chan struct{})}
	require.NoError(t, s.Add(Entry{Job: job, Spec: "* * * * *"}))
	st := s.jobs["blocking"]

	done := make(chan struct{})
	go func() {
		s.runOnce(st)
		close(done)
	}()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.runOnce(st)
	require.Equal(t, int32(1), job.runs.Load())

	close(job.release)
	<-done
	s.runOnce(st)
	require.Equal(t, int32(2), job.runs.Load())

	stats, ok := s.Stats("blocking")
	require.True(t, ok)
	require.Equal(t, int64(2), stats.Runs)
	require.Equal(t, int64(1), stats.Skipped)
	require.Zero(t, stats.Failures)
}

func TestRunOnceAppliesTimeout(t *testing.T) {
	s := NewCronScheduler()
	job := &deadlineJob{}
	require.NoError(t, s.Add(Entry{Job: job, Spec: "* * * * *", Timeout: 20 * time.Millisecond}))

	s.runOnce(s.jobs["deadline"])
	require.True(t, job.hadDeadline)

	stats, _ := s.Stats("deadline")
	require.Equal(t, int64(1), stats.Failures)
	require.True(t, errors.Is(stats.LastErr, context.DeadlineExceeded))
}
