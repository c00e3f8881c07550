package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrorDump is the log-only view of a failure chain. It never reaches API clients.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Retryable  bool     `json:"retryable"`
	Chain      []string `json:"chain,omitempty"`

	// UpstreamStatus is set when the chain holds an upstream HTTP response.
	UpstreamStatus int `json:"upstream_status,omitempty"`

	Driver       string `json:"driver,omitempty"`
	SQLiteCode   int    `json:"sqlite_code,omitempty"`
	SQLiteExt    int    `json:"sqlite_extended_code,omitempty"`
	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
}

type httpStatusCarrier interface {
	HTTPStatus() int
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{
		TopMessage: err.Error(),
		Code:       CodeInternal,
		Retryable:  IsRetryable(err),
	}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var carrier httpStatusCarrier
	if errors.As(err, &carrier) {
		d.UpstreamStatus = carrier.HTTPStatus()
	}

	var liteErr sqlite3.Error
	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &liteErr):
		d.Driver = "sqlite"
		d.SQLiteCode = int(liteErr.Code)
		d.SQLiteExt = int(liteErr.ExtendedCode)
	case errors.As(err, &pgxErr):
		d.Driver = "postgres"
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGDetail = pgxErr.Detail
	case errors.As(err, &pqErr):
		d.Driver = "postgres"
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGDetail = pqErr.Detail
	}
	return d
}

// Fields flattens the dump into log fields, skipping empty driver details.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":           d.TopMessage,
		"error_code":      d.Code,
		"error_chain":     d.Chain,
		"error_retryable": d.Retryable,
	}
	if d.UpstreamStatus != 0 {
		fields["upstream_status"] = d.UpstreamStatus
	}
	switch d.Driver {
	case "sqlite":
		fields["sqlite_code"] = d.SQLiteCode
		fields["sqlite_extended_code"] = d.SQLiteExt
	case "postgres":
		fields["pg_code"] = d.PGCode
		fields["pg_constraint"] = d.PGConstraint
		fields["pg_table"] = d.PGTable
		fields["pg_detail"] = d.PGDetail
	}
	return fields
}
