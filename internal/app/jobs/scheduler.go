// Package jobs holds background ledger jobs and the interval scheduler that runs them.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrJobAlreadyExists        = errors.New("scheduler: job already registered")
	ErrInvalidInterval         = errors.New("scheduler: interval must be positive")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
	ErrSchedulerNotRunning     = errors.New("scheduler: not running")
)

// Job is a unit of background work.
type Job interface {
	Name() string
	Description() string
	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// JobResult describes one execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Err         error
}

type scheduledJob struct {
	job        Job
	interval   time.Duration
	runOnStart bool
}

// Scheduler runs each registered job on its own fixed interval. Runs of the same
// job never overlap; a tick that arrives while the job is running is dropped.
type Scheduler struct {
	mu      sync.Mutex
	log     zerolog.Logger
	jobs    map[string]*scheduledJob
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// OnJobComplete, when set, is called after every run.
	OnJobComplete func(JobResult)
}

// NewScheduler creates an idle scheduler.
func NewScheduler(lgr zerolog.Logger) *Scheduler {
	return &Scheduler{
		log:  lgr.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]*scheduledJob),
	}
}

// Register adds job to run every interval, and once at start when runOnStart is set.
func (s *Scheduler) Register(job Job, interval time.Duration, runOnStart bool) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, job.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, job.Name())
	}
	s.jobs[job.Name()] = &scheduledJob{job: job, interval: interval, runOnStart: runOnStart}

	s.log.Info().Str("job", job.Name()).Str("description", job.Description()).Dur("interval", interval).Msg("Job registered")
	return nil
}

// Start launches one loop per job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, sj := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, sj)
	}

	s.log.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop cancels every loop and waits for in-flight runs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, sj *scheduledJob) {
	defer s.wg.Done()

	if sj.runOnStart {
		s.runJob(ctx, sj.job)
	}

	ticker := time.NewTicker(sj.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, sj.job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	result := JobResult{JobName: job.Name(), StartedAt: time.Now()}
	result.Err = job.Run(ctx)
	result.CompletedAt = time.Now()

	duration := result.CompletedAt.Sub(result.StartedAt)
	if result.Err != nil {
		s.log.Error().Err(result.Err).Str("job", job.Name()).Dur("duration", duration).Msg("Job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Dur("duration", duration).Msg("Job completed")
	}

	if s.OnJobComplete != nil {
		s.OnJobComplete(result)
	}
}
