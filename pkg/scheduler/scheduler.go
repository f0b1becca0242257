package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joripage/stock-exchange/pkg/logging"
	"go.uber.org/zap"
)

// Job is one periodic unit of work, e.g. a matching run.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job      Job
	interval time.Duration

	// running is held for the whole of a run; a tick that cannot take it is skipped.
	running sync.Mutex
	runs    atomic.Int64
	skipped atomic.Int64
}

type Scheduler struct {
	logger  *logging.Logger
	locker  Locker
	lockTTL time.Duration

	mu      sync.Mutex
	entries []*entry
	started bool
	wg      sync.WaitGroup
}

type Option func(*Scheduler)

// WithLocker guards every run with a lock shared between processes.
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

func New(logger *logging.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:  logger.Named("scheduler"),
		lockTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Add(job Job, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", errInvalidInterval, job.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errAlreadyStarted
	}
	for _, e := range s.entries {
		if e.job.Name() == job.Name() {
			return fmt.Errorf("%w: %s", errDuplicateJob, job.Name())
		}
	}
	s.entries = append(s.entries, &entry{job: job, interval: interval})
	return nil
}

// Start ticks every job until ctx is done, then waits for in-flight runs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errAlreadyStarted
	}
	s.started = true
	entries := s.entries
	s.mu.Unlock()

	var loops sync.WaitGroup
	for _, e := range entries {
		e := e
		s.logger.Info(ctx, "schedule job", zap.String("job", e.job.Name()), zap.Duration("interval", e.interval))
		loops.Add(1)
		go func() {
			defer loops.Done()
			s.loop(ctx, e)
		}()
	}

	loops.Wait()
	s.wg.Wait()
	s.logger.Info(ctx, "scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx, e)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, e *entry) {
	if !e.running.TryLock() {
		e.skipped.Add(1)
		s.logger.Info(ctx, "previous run still executing, tick skipped", zap.String("job", e.job.Name()))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer e.running.Unlock()

		// runs are never cut short by shutdown
		if ran, _ := s.RunOnce(context.WithoutCancel(ctx), e.job); ran {
			e.runs.Add(1)
		}
	}()
}

// RunOnce executes job a single time under a fresh run id. It returns false when the
// shared lock was held elsewhere and the job did not run.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) (ran bool, err error) {
	ctx = logging.WithRun(ctx, job.Name())

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, job.Name(), s.lockTTL)
		if err != nil {
			s.logger.Error(ctx, "acquire job lock", zap.Error(err))
			return false, err
		}
		if !ok {
			s.logger.Info(ctx, "job lock held by another process, tick skipped")
			return false, nil
		}
		defer func() {
			if err := release(ctx); err != nil {
				s.logger.Warn(ctx, "release job lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	err = job.Run(ctx)
	if err != nil {
		s.logger.Error(ctx, "job run failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return true, err
	}
	s.logger.Debug(ctx, "job run done", zap.Duration("took", time.Since(start)))
	return true, nil
}

// Stats reports how many runs of the named job completed and how many ticks were skipped.
func (s *Scheduler) Stats(name string) (runs, skipped int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.job.Name() == name {
			return e.runs.Load(), e.skipped.Load()
		}
	}
	return 0, 0
}
