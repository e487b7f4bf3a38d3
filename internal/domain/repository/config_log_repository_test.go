package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/ibarwick/config-log/internal/common"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func query(t *testing.T, db *sql.DB, q string) *sql.Rows {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), q)
	require.NoError(t, err)
	return rows
}

func TestScanSingletonInt64(t *testing.T) {
	db := openTestDB(t)

	n, err := scanSingletonInt64(query(t, db, "SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = scanSingletonInt64(query(t, db, "SELECT 0"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScanSingletonBool(t *testing.T) {
	db := openTestDB(t)

	changed, err := scanSingletonBool(query(t, db, "SELECT 1"))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = scanSingletonBool(query(t, db, "SELECT 0"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestScanSingleton_ShapeViolations(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  error
	}{
		{"no rows", "SELECT 1 WHERE 1 = 0", common.ErrNotSingleton},
		{"two rows", "SELECT 1 UNION ALL SELECT 2", common.ErrNotSingleton},
		{"two columns", "SELECT 1, 2", common.ErrUnexpectedColumns},
		{"null", "SELECT NULL", common.ErrNullResult},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := openTestDB(t)

			_, err := scanSingletonInt64(query(t, db, tc.query))
			assert.ErrorIs(t, err, tc.want)

			_, err = scanSingletonBool(query(t, db, tc.query))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestWithinTx_CommitsAndRollsBack(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec("CREATE TABLE pg_settings_log (name TEXT)")
	require.NoError(t, err)
	repo := NewPgConfigLogRepository(db)

	insert := func(q ConfigLogQuerier) error {
		tx := q.(*pgConfigLogQuerier).q.(*sql.Tx)
		_, err := tx.Exec("INSERT INTO pg_settings_log VALUES ('work_mem')")
		return err
	}

	require.NoError(t, repo.WithinTx(context.Background(), false, insert))

	boom := errors.New("boom")
	err = repo.WithinTx(context.Background(), false, func(q ConfigLogQuerier) error {
		require.NoError(t, insert(q))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM pg_settings_log").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWithinTx_BeginFailure(t *testing.T) {
	db := openTestDB(t)
	repo := NewPgConfigLogRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.WithinTx(ctx, false, func(q ConfigLogQuerier) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, common.ErrQueryFailed)
	assert.False(t, called)
}

func TestLoggerCallSQL_QuotesIdentifiers(t *testing.T) {
	assert.Equal(t, `SELECT "public"."pg_settings_logger"()`, LoggerCallSQL("public", "pg_settings_logger"))
	assert.Equal(t, `SELECT "x""; DROP TABLE t; --"."f"()`, LoggerCallSQL(`x"; DROP TABLE t; --`, "f"))
}

type failingQueryer struct{ err error }

func (f failingQueryer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, f.err
}

func TestCallLogger_ReportsSQLState(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42883", Message: "function public.pg_settings_logger() does not exist"}
	q := &pgConfigLogQuerier{q: failingQueryer{err: pgErr}}

	_, err := q.CallLogger(context.Background(), "public", "pg_settings_logger")

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrQueryFailed)
	assert.Contains(t, err.Error(), "SQLSTATE 42883")
	assert.Equal(t, "42883", common.SQLState(err))

	var got *pgconn.PgError
	assert.True(t, errors.As(err, &got))
}

func TestCountBaseTables_NonServerErrorHasNoSQLState(t *testing.T) {
	q := &pgConfigLogQuerier{q: failingQueryer{err: errors.New("conn closed")}}

	_, err := q.CountBaseTables(context.Background(), "public", "pg_settings_log")

	assert.ErrorIs(t, err, common.ErrQueryFailed)
	assert.NotContains(t, err.Error(), "SQLSTATE")
	assert.Empty(t, common.SQLState(err))
}
