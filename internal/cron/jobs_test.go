package cron

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

type fakePurger struct {
	cutoff  time.Time
	removed int64
	err     error
}

func (f *fakePurger) PurgeDeadLettersBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.removed, f.err
}

func TestDeadLetterRetentionJobUsesCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	purger := &fakePurger{removed: 3}
	job, err := NewDeadLetterRetentionJob(DeadLetterRetentionJobParams{
		Logger:    logger.Nop(),
		Queue:     purger,
		Retention: 48 * time.Hour,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "dead-letter-retention" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := now.Add(-48 * time.Hour); !purger.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, purger.cutoff)
	}
}

func TestDeadLetterRetentionJobPropagatesError(t *testing.T) {
	job, err := NewDeadLetterRetentionJob(DeadLetterRetentionJobParams{
		Logger: logger.Nop(),
		Queue:  &fakePurger{err: errors.New("disk full")},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected purge error, got %v", err)
	}
}

type fakeRefresher struct {
	table  enums.Collection
	err    error
	maxAge time.Duration
	calls  atomic.Int32
}

func (f *fakeRefresher) Collection() enums.Collection { return f.table }

func (f *fakeRefresher) Refresh(_ context.Context, maxAge time.Duration) (bool, error) {
	f.calls.Add(1)
	f.maxAge = maxAge
	return f.err == nil, f.err
}

func TestReferenceRefreshJobRunsAllAndJoinsErrors(t *testing.T) {
	languages := &fakeRefresher{table: enums.CollectionLanguages}
	currencies := &fakeRefresher{table: enums.CollectionCurrencies, err: errors.New("503")}
	countries := &fakeRefresher{table: enums.CollectionCountries}
	job, err := NewReferenceRefreshJob(ReferenceRefreshJobParams{
		Logger:     logger.Nop(),
		Refreshers: []Refresher{languages, currencies, countries},
		MaxAge:     time.Hour,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	err = job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "refresh currencies") {
		t.Fatalf("expected currencies error, got %v", err)
	}
	for _, r := range []*fakeRefresher{languages, currencies, countries} {
		if r.calls.Load() != 1 {
			t.Fatalf("%s refreshed %d times", r.table, r.calls.Load())
		}
		if r.maxAge != time.Hour {
			t.Fatalf("%s got max age %s", r.table, r.maxAge)
		}
	}
}

func TestNewReferenceRefreshJobRequiresRefreshers(t *testing.T) {
	if _, err := NewReferenceRefreshJob(ReferenceRefreshJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatalf("expected error without refreshers")
	}
}
