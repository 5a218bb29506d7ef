package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry binds a job to a five field cron spec. A positive Timeout bounds each
// run; zero lets a run last until the scheduler context ends.
type Entry struct {
	Job     Job
	Spec    string
	Timeout time.Duration
}

// Stats is a snapshot of one job's run history.
type Stats struct {
	Runs     int64
	Skipped  int64
	Failures int64
	LastErr  error
}

type jobState struct {
	entry    Entry
	running  atomic.Bool
	runs     atomic.Int64
	skipped  atomic.Int64
	failures atomic.Int64

	mu      sync.Mutex
	lastErr error
}

type CronScheduler struct {
	cron *cron.Cron
	jobs map[string]*jobState
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]*jobState),
		ctx:  context.Background(),
	}
}

// Add schedules e. A blank spec leaves the job disabled and is not an error.
func (c *CronScheduler) Add(e Entry) error {
	if e.Job == nil {
		return fmt.Errorf("job is required")
	}
	name := e.Job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", e.Spec))
	if strings.TrimSpace(e.Spec) == "" {
		logger.Info("job disabled")
		return nil
	}
	if _, ok := c.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	st := &jobState{entry: e}
	if _, err := c.cron.AddFunc(e.Spec, func() { c.runOnce(st) }); err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	c.jobs[name] = st
	logger.Info("job scheduled", zap.Duration("timeout", e.Timeout))
	return nil
}

func (c *CronScheduler) Len() int {
	return len(c.jobs)
}

func (c *CronScheduler) Stats(name string) (Stats, bool) {
	st, ok := c.jobs[name]
	if !ok {
		return Stats{}, false
	}
	st.mu.Lock()
	lastErr := st.lastErr
	st.mu.Unlock()
	return Stats{
		Runs:     st.runs.Load(),
		Skipped:  st.skipped.Load(),
		Failures: st.failures.Load(),
		LastErr:  lastErr,
	}, true
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
	c.cron.Start()
}

// Stop halts the cron loop and waits for in flight runs.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

// runOnce executes one tick of st. A tick arriving while the previous run is
// still going is dropped.
func (c *CronScheduler) runOnce(st *jobState) {
	name := st.entry.Job.Name()
	if !st.running.CompareAndSwap(false, true) {
		st.skipped.Add(1)
		logutil.GetLogger(c.ctx).Info("job skipped: still running", zap.String("job", name))
		return
	}
	defer st.running.Store(false)

	ctx := c.ctx
	if st.entry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.entry.Timeout)
		defer cancel()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("job", name))
	start := time.Now()
	err := st.entry.Job.Run(ctx)
	st.runs.Add(1)
	st.mu.Lock()
	st.lastErr = err
	st.mu.Unlock()
	if err != nil {
		st.failures.Add(1)
		logger.Error("job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	logger.Info("job finished", zap.Duration("duration", time.Since(start)))
}
