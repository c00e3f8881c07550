package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/posdesk/api/responses"
	"github.com/angelmondragon/posdesk/api/validators"
	"github.com/angelmondragon/posdesk/internal/replay"
	"github.com/angelmondragon/posdesk/pkg/connectivity"
	"github.com/angelmondragon/posdesk/pkg/db/models"
	"github.com/angelmondragon/posdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

// DeadLetterIDParam is the route parameter carrying a dead letter id.
const DeadLetterIDParam = "deadLetterID"

// SyncQueue is the queue surface exposed to operators.
type SyncQueue interface {
	Count(ctx context.Context) int64
	ListPending(ctx context.Context, table *enums.Collection) []models.SyncQueueItem
	ListDeadLetters(ctx context.Context, limit int) []models.DeadLetter
	Requeue(ctx context.Context, deadLetterID string) (models.SyncQueueItem, error)
}

// Replayer runs replay passes on demand.
type Replayer interface {
	Flush(ctx context.Context) (replay.PassResult, error)
	LastPass() (replay.PassResult, bool)
}

type syncStatus struct {
	Online      bool               `json:"online"`
	Pending     int64              `json:"pending"`
	ByTable     map[string]int     `json:"by_table"`
	DeadLetters int                `json:"dead_letters"`
	LastPass    *replay.PassResult `json:"last_pass,omitempty"`
}

func SyncStatus(queue SyncQueue, replayer Replayer, signal connectivity.Signal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		pending := queue.ListPending(ctx, nil)
		byTable := make(map[string]int)
		for _, item := range pending {
			byTable[string(item.Table)]++
		}
		status := syncStatus{
			Online:      signal.Online(),
			Pending:     int64(len(pending)),
			ByTable:     byTable,
			DeadLetters: len(queue.ListDeadLetters(ctx, 0)),
		}
		if replayer != nil {
			if last, ok := replayer.LastPass(); ok {
				status.LastPass = &last
			}
		}
		responses.WriteSuccess(w, status)
	}
}

// ListSyncQueue lists pending items oldest first, optionally for one table.
func ListSyncQueue(queue SyncQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		table, err := validators.ParseQueryCollection(r, "table")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, queue.ListPending(ctx, table))
	}
}

func ListDeadLetters(queue SyncQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, queue.ListDeadLetters(r.Context(), limit))
	}
}

// RequeueDeadLetter puts a dead letter back on the queue with a fresh retry count.
func RequeueDeadLetter(queue SyncQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := strings.TrimSpace(chi.URLParam(r, DeadLetterIDParam))
		if id == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "dead letter id missing"))
			return
		}
		item, err := queue.Requeue(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// FlushSync runs one replay pass immediately, ignoring per-item backoff.
func FlushSync(replayer Replayer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if replayer == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "replay runs in a separate worker"))
			return
		}
		result, err := replayer.Flush(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
