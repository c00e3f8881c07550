package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/angelmondragon/posdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/types"
)

// PendingSyncMessage is shown to the cashier when a write was queued locally.
const PendingSyncMessage = "saved offline, will sync"

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteQuery writes query data tagged with its source. A cache answer after a
// failed fetch carries the fetch error as a warning.
func WriteQuery(w http.ResponseWriter, data any, source enums.DataSource, fetchErr error) {
	meta := &types.Meta{Source: source.String()}
	if source.IsDegraded() && fetchErr != nil {
		meta.Warning = publicMessage(fetchErr)
	}
	writeJSON(w, http.StatusOK, types.SuccessEnvelope{Data: data, Meta: meta})
}

// WriteMutation answers 202 for writes queued for replay, otherwise
// syncedStatus (201 for creates, 200 for updates and deletes).
func WriteMutation(w http.ResponseWriter, syncedStatus int, data any, status enums.MutationStatus, queueID string) {
	meta := &types.Meta{Status: status.String()}
	httpStatus := syncedStatus
	if status.IsPending() {
		httpStatus = http.StatusAccepted
		meta.QueueID = queueID
		meta.Message = PendingSyncMessage
	}
	writeJSON(w, httpStatus, types.SuccessEnvelope{Data: data, Meta: meta})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: publicMessage(typed),
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

// publicMessage returns the typed message for client-facing codes and the
// generic public message otherwise.
func publicMessage(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage
	}
	msg := pkgerrors.MetadataFor(typed.Code()).PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeOffline:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
