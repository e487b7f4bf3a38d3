package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithDomainError_CarriesHintAndSQLState(t *testing.T) {
	err := &InvariantViolation{
		Op:      "ValidateAndInit",
		Message: "expected config log table 'public.pg_settings_log' not found",
		Hint:    "check CONFIG_LOG_* settings",
		Err:     fmt.Errorf("%w: %w", ErrObjectNotFound, &pgconn.PgError{Code: "42P01"}),
	}
	rec := httptest.NewRecorder()

	RespondWithDomainError(rec, err, "objects missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorResponse{Error: "objects missing", Hint: "check CONFIG_LOG_* settings", SQLState: "42P01"}, body)
}

func TestRespondWithError_OmitsEmptyFields(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, http.StatusForbidden, "Admin access required")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Admin access required"}`, rec.Body.String())
}

func TestRespondWithJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithJSON(rec, http.StatusOK, make(chan int))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to encode response"}`, rec.Body.String())
}
