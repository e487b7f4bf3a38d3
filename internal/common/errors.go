package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrObjectNotFound     = errors.New("dependent database object not found")
	ErrNotSingleton       = errors.New("not a singleton result")
	ErrNullResult         = errors.New("null result")
	ErrUnexpectedColumns  = errors.New("unexpected number of result columns")
	ErrQueryFailed        = errors.New("query execution failed")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrHostDied           = errors.New("host process died")
	ErrLockHeld           = errors.New("config_log instance lock held by another worker")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Process exit codes reported by the task.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// InvariantViolation marks an unrecoverable precondition failure: a missing
// dependent object, a result of the wrong shape or a failed query. It always
// ends the task; nothing inside the task retries it.
type InvariantViolation struct {
	Op      string
	Message string
	Hint    string
	Err     error
}

func (e *InvariantViolation) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil && !errors.Is(e.Err, ErrObjectNotFound) {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *InvariantViolation) Unwrap() error {
	return e.Err
}

// Fatal builds an InvariantViolation wrapping err.
func Fatal(op string, err error, format string, args ...interface{}) *InvariantViolation {
	return &InvariantViolation{Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsFatal reports whether err carries an InvariantViolation.
func IsFatal(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}

// HintFromError returns the operator hint attached to err, if any.
func HintFromError(err error) string {
	var iv *InvariantViolation
	if errors.As(err, &iv) {
		return iv.Hint
	}
	return ""
}

// ExitCodeFromError maps domain errors to process exit codes.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrInvalidArgument) && !IsFatal(err) {
		return ExitUsage
	}
	return ExitFailure
}

// HTTPStatusFromError maps domain errors to status codes for the control API.
func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrObjectNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// SQLState returns the SQLSTATE of a PostgreSQL error in err's chain, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
