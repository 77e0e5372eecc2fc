package errors

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE values the ledger treats specially; everything else maps by class
const (
	sqlSerialization  = "40001"
	sqlDeadlock       = "40P01"
	sqlLockNotAvail   = "55P03"
	sqlQueryCanceled  = "57014"
	sqlCannotConnect  = "57P03"
	sqlReadOnlyTx     = "25006"
	sqlClassIntegrity = "23"
	sqlClassData      = "22"
	sqlClassConn      = "08"
)

// DBErrorCode classifies a Postgres error. ok is false when err carries no
// *pgconn.PgError.
func DBErrorCode(err error) (code ErrorCode, ok bool) {
	var pgErr *pgconn.PgError
	if !stderrs.As(err, &pgErr) {
		return ErrorCodeUnknown, false
	}
	switch c := pgErr.Code; {
	case c == sqlSerialization, c == sqlDeadlock, c == sqlLockNotAvail,
		c == sqlQueryCanceled, c == sqlCannotConnect, c == sqlReadOnlyTx,
		strings.HasPrefix(c, sqlClassConn):
		return ErrorCodeUnavailable, true
	case strings.HasPrefix(c, sqlClassIntegrity), strings.HasPrefix(c, sqlClassData):
		// the crawler builds every ledger row, so a rejected row is a bug in the input
		return ErrorCodeInvalidArgument, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps a ledger error as op. Errors that already carry a code
// pass through; foreign errors become DB errors. nil stays nil.
func FromPostgres(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, op)
}

// IsRetryable reports whether a ledger statement may succeed if simply issued
// again. Caller cancellation never is.
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlSerialization, sqlDeadlock, sqlLockNotAvail:
			return true
		}
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	s := strings.ToLower(Root(err).Error())
	return strings.Contains(s, "deadlock detected") ||
		strings.Contains(s, "could not serialize access") ||
		strings.Contains(s, "commit unexpectedly resulted in rollback")
}
