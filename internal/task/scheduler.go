package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrSchedulerStarted is returned by Add after Start.
var ErrSchedulerStarted = errors.New("scheduler already started")

// Job is one unit of periodic work.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Run performs one pass. It should return promptly when ctx is done.
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

// Name implements Job.
func (j JobFunc) Name() string { return j.JobName }

// Run implements Job.
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler runs registered jobs on fixed intervals.
type Scheduler struct {
	cron       *cron.Cron
	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex
	started    bool
	jobCount   int
	logger     *slog.Logger
	errHandler func(job Job, err error)
}

// NewScheduler creates an idle Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	l := logger.With(slog.String("component", "scheduler"))
	cl := cronLogger{logger: l}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     l,
		errHandler: func(job Job, err error) {
			l.Error("job run failed",
				slog.String("job", job.Name()),
				slog.String("error", err.Error()))
		},
	}
}

// SetErrorHandler replaces the default handler, which logs the error.
// Panics are recovered and logged by the scheduler and do not reach it.
func (s *Scheduler) SetErrorHandler(handler func(job Job, err error)) {
	s.errHandler = handler
}

// Add registers job to run every interval. Jobs must be added before Start.
// Intervals below one second are rounded up to one second.
func (s *Scheduler) Add(job Job, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", job.Name(), interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSchedulerStarted
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, func() { s.runOnce(job) }); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name(), spec, err)
	}
	s.jobCount++
	return nil
}

// Start begins running jobs. The first run happens one interval after Start;
// runs of the same job never overlap.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("job_count", s.jobCount))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancelFunc()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runOnce(job Job) {
	if s.ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := job.Run(s.ctx); err != nil {
		if s.ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		s.errHandler(job, err)
		return
	}
	s.logger.Debug("job run complete",
		slog.String("job", job.Name()),
		slog.Duration("duration", time.Since(start)))
}

// cronLogger adapts slog to cron.Logger. Scheduling chatter goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

// Info implements cron.Logger.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

// Error implements cron.Logger.
func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)
	l.logger.Error(msg, args...)
}
