package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/posdesk/pkg/logger"
)

const (
	deadLetterRetentionJobName = "dead-letter-retention"
	defaultDeadLetterRetention = 30 * 24 * time.Hour
)

type deadLetterPurger interface {
	PurgeDeadLettersBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeadLetterRetentionJobParams configure the dead letter purge.
type DeadLetterRetentionJobParams struct {
	Logger    *logger.Logger
	Queue     deadLetterPurger
	Retention time.Duration
	Now       func() time.Time
}

// deadLetterRetentionJob deletes dead letters older than the retention window.
type deadLetterRetentionJob struct {
	logg      *logger.Logger
	queue     deadLetterPurger
	retention time.Duration
	now       func() time.Time
}

// NewDeadLetterRetentionJob builds the dead letter retention job.
func NewDeadLetterRetentionJob(params DeadLetterRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("sync queue required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultDeadLetterRetention
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &deadLetterRetentionJob{
		logg:      params.Logger,
		queue:     params.Queue,
		retention: retention,
		now:       now,
	}, nil
}

func (j *deadLetterRetentionJob) Name() string { return deadLetterRetentionJobName }

func (j *deadLetterRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	removed, err := j.queue.PurgeDeadLettersBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge dead letters: %w", err)
	}
	if removed > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		})
		j.logg.Info(logCtx, "dead letters purged")
	}
	return nil
}
