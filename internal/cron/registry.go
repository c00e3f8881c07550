package cron

import (
	"context"
	"time"

	"github.com/angelmondragon/posdesk/pkg/logger"
)

// Job is one maintenance task run on every cron tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds job; nil jobs are ignored so optional jobs can be passed through.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// MaintenanceParams configure the jobs every agent process schedules.
type MaintenanceParams struct {
	Logger              *logger.Logger
	Queue               deadLetterPurger
	DeadLetterRetention time.Duration
	Refreshers          []Refresher
	ReferenceMaxAge     time.Duration
}

// NewMaintenanceRegistry registers dead letter retention and reference refresh.
func NewMaintenanceRegistry(params MaintenanceParams) (*Registry, error) {
	retention, err := NewDeadLetterRetentionJob(DeadLetterRetentionJobParams{
		Logger:    params.Logger,
		Queue:     params.Queue,
		Retention: params.DeadLetterRetention,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := NewReferenceRefreshJob(ReferenceRefreshJobParams{
		Logger:     params.Logger,
		Refreshers: params.Refreshers,
		MaxAge:     params.ReferenceMaxAge,
	})
	if err != nil {
		return nil, err
	}
	return NewRegistry(retention, refresh), nil
}
