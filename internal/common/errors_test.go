package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestInvariantViolation_Error(t *testing.T) {
	notFound := &InvariantViolation{
		Op:      "ValidateObjects",
		Message: "expected config log table 'public.pg_settings_log' not found",
		Hint:    "check CONFIG_LOG_* settings",
		Err:     ErrObjectNotFound,
	}
	assert.Equal(t, "ValidateObjects: expected config log table 'public.pg_settings_log' not found", notFound.Error())
	assert.ErrorIs(t, notFound, ErrObjectNotFound)

	wrapped := Fatal("InvokeLogger", fmt.Errorf("scan: %w", ErrNullResult), "%s() returned no usable result", "pg_settings_logger")
	assert.Equal(t, "InvokeLogger: pg_settings_logger() returned no usable result: scan: null result", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrNullResult)

	bare := &InvariantViolation{Err: ErrNotSingleton}
	assert.Equal(t, "not a singleton result", bare.Error())
}

func TestIsFatalAndHint(t *testing.T) {
	iv := &InvariantViolation{Op: "x", Message: "y", Hint: "try z"}
	outer := fmt.Errorf("worker: %w", iv)

	assert.True(t, IsFatal(outer))
	assert.Equal(t, "try z", HintFromError(outer))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.Empty(t, HintFromError(errors.New("plain")))
}

func TestExitCodeFromError(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCodeFromError(nil))
	assert.Equal(t, ExitUsage, ExitCodeFromError(fmt.Errorf("flag: %w", ErrInvalidArgument)))
	assert.Equal(t, ExitFailure, ExitCodeFromError(Fatal("op", ErrInvalidArgument, "schema name is empty")))
	assert.Equal(t, ExitFailure, ExitCodeFromError(ErrHostDied))
}

func TestHTTPStatusFromError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromError(ErrInvalidArgument))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusFromError(fmt.Errorf("x: %w", ErrServiceUnavailable)))
	assert.Equal(t, http.StatusNotFound, HTTPStatusFromError(ErrObjectNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromError(errors.New("boom")))
}

func TestSQLState(t *testing.T) {
	err := fmt.Errorf("query: %w", &pgconn.PgError{Code: "42883"})
	assert.Equal(t, "42883", SQLState(err))
	assert.Empty(t, SQLState(errors.New("plain")))
}
