package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/connectivity"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/metrics"
	"github.com/angelmondragon/posdesk/pkg/remote"
)

const (
	defaultBatchSize   = 25
	defaultPollMs      = 2000
	defaultMaxAttempts = 8
	defaultBackoffBase = 2 * time.Second
	defaultBackoffMax  = 5 * time.Minute
	defaultSendTimeout = 15 * time.Second
	maxLoopBackoff     = 30 * time.Second
	jitterWindow       = 250 * time.Millisecond
	tempIDPrefix       = "temp-"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type syncQueue interface {
	ListPending(ctx context.Context, table *enums.Collection) []models.SyncQueueItem
	Get(ctx context.Context, id string) (*models.SyncQueueItem, bool)
	Count(ctx context.Context) int64
	Remove(ctx context.Context, id string) error
	RecordRetry(ctx context.Context, id string, retryCount int, cause error) error
	RecordID(item models.SyncQueueItem) string
	RewriteRecordID(ctx context.Context, oldID, newID string) (int, error)
	DeadLetter(ctx context.Context, item models.SyncQueueItem, reason enums.DeadLetterReason, cause error) (models.DeadLetter, error)
}

type upstream interface {
	Post(ctx context.Context, path string, body any, idempotencyKey string, out any) error
	Put(ctx context.Context, path string, body any, idempotencyKey string, out any) error
	Delete(ctx context.Context, path string, idempotencyKey string) error
}

// Reconciler swaps a temp record for the server's copy once its create
// has been acknowledged.
type Reconciler interface {
	Reconcile(ctx context.Context, table enums.Collection, tempID string, server json.RawMessage) error
}

type locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	Queue      syncQueue
	Upstream   upstream
	Signal     connectivity.Signal
	Reconciler Reconciler
	// Lock is optional; passes are always exclusive within the process.
	Lock    locker
	Metrics *metrics.SyncMetrics
	// Wake triggers an immediate pass when it delivers true, typically a
	// connectivity subscription.
	Wake <-chan bool
	Now  func() time.Time
}

// PassResult summarizes one replay pass.
type PassResult struct {
	Skipped      bool   `json:"skipped"`
	Reason       string `json:"reason,omitempty"`
	Attempted    int    `json:"attempted"`
	Succeeded    int    `json:"succeeded"`
	Retried      int    `json:"retried"`
	DeadLettered int    `json:"dead_lettered"`
	Deferred     int    `json:"deferred"`
	Remaining    int64  `json:"remaining"`
	// FinishedAt is the unix-ms completion time of passes that ran.
	FinishedAt int64 `json:"finished_at,omitempty"`
}

// Service drains the sync queue against the upstream API.
type Service struct {
	logg        *logger.Logger
	queue       syncQueue
	upstream    upstream
	signal      connectivity.Signal
	reconciler  Reconciler
	lock        locker
	metrics     *metrics.SyncMetrics
	wake        <-chan bool
	now         func() time.Time
	running     atomic.Bool
	last        atomic.Pointer[PassResult]
	batchSize   int
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	interval    time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Queue == nil {
		return nil, errors.New("sync queue is required")
	}
	if params.Upstream == nil {
		return nil, errors.New("upstream client is required")
	}
	if params.Signal == nil {
		return nil, errors.New("connectivity signal is required")
	}

	cfg := params.Config.Sync
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := cfg.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	base := cfg.BackoffBase
	if base <= 0 {
		base = defaultBackoffBase
	}
	maxBackoff := cfg.BackoffMax
	if maxBackoff <= 0 {
		maxBackoff = defaultBackoffMax
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		logg:        params.Logger,
		queue:       params.Queue,
		upstream:    params.Upstream,
		signal:      params.Signal,
		reconciler:  params.Reconciler,
		lock:        params.Lock,
		metrics:     params.Metrics,
		wake:        params.Wake,
		now:         now,
		batchSize:   batch,
		maxAttempts: maxAttempts,
		backoffBase: base,
		backoffMax:  maxBackoff,
		interval:    time.Duration(pollMs) * time.Millisecond,
	}, nil
}

// Run replays the queue until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	backoff := s.interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "replay service context canceled")
			return ctx.Err()
		default:
		}

		result, err := s.Pass(ctx)
		if err != nil {
			s.logg.Error(ctx, "replay pass error", err)
			backoff = nextBackoff(backoff, s.interval, maxLoopBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = s.interval

		if result.Succeeded > 0 && result.Remaining > 0 {
			continue
		}
		if err := s.sleep(ctx, withJitter(s.interval)); err != nil {
			return err
		}
	}
}

// Pass runs one replay pass over items whose backoff has elapsed.
func (s *Service) Pass(ctx context.Context) (PassResult, error) {
	return s.pass(ctx, false)
}

// Flush runs one pass ignoring backoff, for an operator-triggered sync.
func (s *Service) Flush(ctx context.Context) (PassResult, error) {
	return s.pass(ctx, true)
}

func (s *Service) pass(ctx context.Context, force bool) (PassResult, error) {
	if !s.signal.Online() {
		return PassResult{Skipped: true, Reason: "offline", Remaining: s.queue.Count(ctx)}, nil
	}
	if !s.running.CompareAndSwap(false, true) {
		return PassResult{Skipped: true, Reason: "pass already running"}, nil
	}
	defer s.running.Store(false)

	if s.lock != nil {
		locked, err := s.lock.Acquire(ctx)
		if err != nil {
			return PassResult{}, fmt.Errorf("lock acquire: %w", err)
		}
		if !locked {
			return PassResult{Skipped: true, Reason: "locked by another worker"}, nil
		}
		defer func() {
			if relErr := s.lock.Release(ctx); relErr != nil {
				s.logg.Error(ctx, "failed to release replay lock", relErr)
			}
		}()
	}

	start := time.Now()
	result, err := s.processBatch(ctx, force)
	s.metrics.ObservePass(time.Since(start))
	result.Remaining = s.queue.Count(ctx)
	result.FinishedAt = s.now().UnixMilli()
	s.metrics.SetQueueDepth(result.Remaining)
	s.last.Store(&result)
	return result, err
}

// LastPass returns the most recent pass that was not skipped.
func (s *Service) LastPass() (PassResult, bool) {
	last := s.last.Load()
	if last == nil {
		return PassResult{}, false
	}
	return *last, true
}

func (s *Service) processBatch(ctx context.Context, force bool) (PassResult, error) {
	var result PassResult
	now := s.now()
	// records with an earlier item still waiting; later items must not overtake it
	blocked := map[string]bool{}
	stale := false

	for _, item := range s.queue.ListPending(ctx, nil) {
		if result.Attempted >= s.batchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if stale {
			// an earlier create rewrote temp ids in pending payloads
			fresh, ok := s.queue.Get(ctx, item.ID)
			if !ok {
				continue
			}
			item = *fresh
		}

		recordID := s.queue.RecordID(item)
		if s.isBlocked(blocked, item, recordID) {
			result.Deferred++
			continue
		}
		if !force && !s.eligible(item, now) {
			block(blocked, recordID)
			result.Deferred++
			s.metrics.IncAttempt(string(item.Table), metrics.ResultDeferred)
			continue
		}

		result.Attempted++
		outcome, err := s.replay(ctx, item, recordID)
		if err != nil {
			return result, err
		}
		switch outcome {
		case metrics.ResultSuccess:
			result.Succeeded++
			if item.Operation == enums.SyncOperationCreate && isTempID(recordID) {
				stale = true
			}
		case metrics.ResultRetry:
			result.Retried++
			block(blocked, recordID)
		case metrics.ResultDeadLetter:
			result.DeadLettered++
			block(blocked, recordID)
		}
	}
	return result, nil
}

func block(blocked map[string]bool, recordID string) {
	if recordID != "" {
		blocked[recordID] = true
	}
}

func (s *Service) isBlocked(blocked map[string]bool, item models.SyncQueueItem, recordID string) bool {
	if recordID != "" && blocked[recordID] {
		return true
	}
	for id := range blocked {
		if isTempID(id) && bytes.Contains(item.Data, []byte(id)) {
			return true
		}
	}
	return false
}

// eligible reports whether the item's retry backoff has elapsed.
func (s *Service) eligible(item models.SyncQueueItem, now time.Time) bool {
	if item.RetryCount == 0 || item.LastRetry == 0 {
		return true
	}
	wait := retryDelay(item.RetryCount, s.backoffBase, s.backoffMax)
	return now.Sub(time.UnixMilli(item.LastRetry)) >= wait
}

// replay sends one item and applies the outcome to the queue. The returned
// error is only set for local storage failures that should end the pass.
func (s *Service) replay(ctx context.Context, item models.SyncQueueItem, recordID string) (string, error) {
	fields := itemFields(item)
	table := string(item.Table)

	server, sendErr := s.send(ctx, item, recordID)
	if sendErr == nil {
		if err := s.complete(ctx, item, recordID, server); err != nil {
			return "", err
		}
		s.metrics.IncAttempt(table, metrics.ResultSuccess)
		s.logg.Info(s.logg.WithFields(ctx, fields), "queued mutation replayed")
		return metrics.ResultSuccess, nil
	}

	if !pkgerrors.IsRetryable(sendErr) {
		reason := enums.DeadLetterReasonNonRetryable
		if pkgerrors.IsCode(sendErr, pkgerrors.CodeValidation) && remote.StatusOf(sendErr) == 0 {
			reason = enums.DeadLetterReasonInvalidPayload
		}
		return s.deadLetter(ctx, item, reason, sendErr)
	}

	next := item.RetryCount + 1
	if next >= s.maxAttempts {
		item.RetryCount = next
		return s.deadLetter(ctx, item, enums.DeadLetterReasonMaxAttempts, fmt.Errorf("max replay attempts reached: %w", sendErr))
	}

	fields["retry_count"] = next
	logCtx := s.logg.WithError(s.logg.WithFields(ctx, fields), sendErr)
	s.logg.Warn(logCtx, "queued mutation replay failed")
	if err := s.queue.RecordRetry(ctx, item.ID, next, sendErr); err != nil {
		return "", fmt.Errorf("record retry %s: %w", item.ID, err)
	}
	s.metrics.IncAttempt(table, metrics.ResultRetry)
	return metrics.ResultRetry, nil
}

func (s *Service) send(ctx context.Context, item models.SyncQueueItem, recordID string) (json.RawMessage, error) {
	if item.Operation != enums.SyncOperationCreate {
		if recordID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "queued mutation has no record id")
		}
		if isTempID(recordID) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("record %s was never created upstream", recordID))
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
	defer cancel()

	var server json.RawMessage
	switch item.Operation {
	case enums.SyncOperationCreate:
		body, err := upstreamBody(item)
		if err != nil {
			return nil, err
		}
		err = s.upstream.Post(sendCtx, remote.CollectionPath(item.Table), body, item.ID, &server)
		return server, err
	case enums.SyncOperationUpdate:
		body, err := upstreamBody(item)
		if err != nil {
			return nil, err
		}
		err = s.upstream.Put(sendCtx, remote.RecordPath(item.Table, recordID), body, item.ID, &server)
		return server, err
	case enums.SyncOperationDelete:
		return nil, s.upstream.Delete(sendCtx, remote.RecordPath(item.Table, recordID), item.ID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown sync operation %q", item.Operation))
	}
}

// complete reconciles a temp record with the server copy, points later
// items at the server id and removes the item.
func (s *Service) complete(ctx context.Context, item models.SyncQueueItem, recordID string, server json.RawMessage) error {
	if item.Operation == enums.SyncOperationCreate && isTempID(recordID) {
		serverID := serverRecordID(server)
		switch {
		case serverID == "":
			s.logg.Warn(s.logg.WithFields(ctx, itemFields(item)), "create acknowledged without a server id")
		default:
			if s.reconciler != nil {
				if err := s.reconciler.Reconcile(ctx, item.Table, recordID, server); err != nil {
					s.logg.Error(s.logg.WithFields(ctx, itemFields(item)), "reconcile temp record failed", err)
				}
			}
			if _, err := s.queue.RewriteRecordID(ctx, recordID, serverID); err != nil {
				return fmt.Errorf("rewrite record id %s: %w", recordID, err)
			}
		}
	}
	if err := s.queue.Remove(ctx, item.ID); err != nil {
		return fmt.Errorf("remove %s: %w", item.ID, err)
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, item models.SyncQueueItem, reason enums.DeadLetterReason, cause error) (string, error) {
	if _, err := s.queue.DeadLetter(ctx, item, reason, cause); err != nil {
		return "", fmt.Errorf("dead letter %s: %w", item.ID, err)
	}
	s.metrics.IncAttempt(string(item.Table), metrics.ResultDeadLetter)
	s.metrics.IncDeadLetter(string(reason))
	return metrics.ResultDeadLetter, nil
}

// upstreamBody strips local-only fields from a queued create or update.
func upstreamBody(item models.SyncQueueItem) (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal(item.Data, &body); err != nil || body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("queued %s payload is not a JSON object", item.Operation))
	}
	delete(body, "is_temp")
	if id, _ := body["id"].(string); isTempID(id) {
		delete(body, "id")
	}
	return body, nil
}

func serverRecordID(server json.RawMessage) string {
	if len(server) == 0 {
		return ""
	}
	var body map[string]any
	if err := json.Unmarshal(server, &body); err != nil {
		return ""
	}
	id, _ := body["id"].(string)
	if isTempID(id) {
		return ""
	}
	return id
}

func itemFields(item models.SyncQueueItem) map[string]any {
	fields := map[string]any{
		"queue_id":    item.ID,
		"table":       item.Table,
		"operation":   item.Operation,
		"retry_count": item.RetryCount,
	}
	if item.LastError != nil {
		fields["last_error"] = *item.LastError
	}
	return fields
}

func isTempID(id string) bool {
	return len(id) > len(tempIDPrefix) && id[:len(tempIDPrefix)] == tempIDPrefix
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case online, ok := <-s.wake:
			if !ok {
				s.wake = nil
				continue
			}
			if online {
				return nil
			}
		}
	}
}

// retryDelay is base * 2^retryCount, capped at max.
func retryDelay(retryCount int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
