package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 5 * time.Minute
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job run.
	JobTimeout time.Duration
	// Wake runs an extra cycle whenever it delivers true, typically a
	// connectivity subscription so stale reference data is refetched as soon
	// as the terminal is back online.
	Wake <-chan bool
}

// Service executes registered jobs on a fixed cadence.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	wake       <-chan bool
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	lock := params.Lock
	if lock == nil {
		lock = NewLocalLock()
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	jobTimeout := params.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: jobTimeout,
		wake:       params.Wake,
	}, nil
}

// Run executes a cycle immediately, then on every interval and on every
// wake signal until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.cycle(ctx, "startup")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	wake := s.wake
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx, "interval")
		case online, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			if online {
				s.cycle(ctx, "reconnect")
			}
		}
	}
}

func (s *Service) cycle(ctx context.Context, trigger string) {
	ctx = s.logg.WithField(ctx, "trigger", trigger)
	if err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
}

// RunOnce runs every job once under the lock. Job failures are logged and
// counted; only lock errors are returned.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another maintenance run holds the lock; skipping this cycle")
		for _, job := range s.registry.Jobs() {
			s.metrics.IncSkipped(job.Name())
		}
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(runCtx)
	took := time.Since(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())

	switch {
	case err == nil:
		s.logg.Debug(jobCtx, "job completed")
		s.metrics.ObserveRun(job.Name(), metrics.JobSucceeded, took)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		s.logg.Error(jobCtx, "job timed out", err)
		s.metrics.ObserveRun(job.Name(), metrics.JobTimedOut, took)
	default:
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.ObserveRun(job.Name(), metrics.JobFailed, took)
	}
}
