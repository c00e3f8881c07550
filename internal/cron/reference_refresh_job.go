package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

const (
	referenceRefreshJobName = "reference-refresh"
	defaultReferenceMaxAge  = 24 * time.Hour
)

// Refresher re-fetches one reference collection when its cache is stale.
type Refresher interface {
	Collection() enums.Collection
	Refresh(ctx context.Context, maxAge time.Duration) (bool, error)
}

// ReferenceRefreshJobParams configure the reference data refresh.
type ReferenceRefreshJobParams struct {
	Logger     *logger.Logger
	Refreshers []Refresher
	MaxAge     time.Duration
}

type referenceRefreshJob struct {
	logg       *logger.Logger
	refreshers []Refresher
	maxAge     time.Duration
}

// NewReferenceRefreshJob builds a job that warms the reference caches so
// lookups keep working after the terminal drops offline.
func NewReferenceRefreshJob(params ReferenceRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(params.Refreshers) == 0 {
		return nil, fmt.Errorf("at least one refresher required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultReferenceMaxAge
	}
	return &referenceRefreshJob{
		logg:       params.Logger,
		refreshers: params.Refreshers,
		maxAge:     maxAge,
	}, nil
}

func (j *referenceRefreshJob) Name() string { return referenceRefreshJobName }

// Run refreshes every collection concurrently. One failing collection does
// not stop the others; all failures are returned together.
func (j *referenceRefreshJob) Run(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range j.refreshers {
		g.Go(func() error {
			fetched, err := r.Refresh(gctx, j.maxAge)
			table := string(r.Collection())
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("refresh %s: %w", table, err))
				mu.Unlock()
				return nil
			}
			if fetched {
				j.logg.Debug(j.logg.WithCollection(gctx, table), "reference data refreshed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
