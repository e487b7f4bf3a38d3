package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ibarwick/config-log/internal/common"

	"github.com/jackc/pgx/v5"
)

// ConfigLogQuerier runs the worker's queries. Every query must produce
// exactly one row with exactly one non-null column.
type ConfigLogQuerier interface {
	CountBaseTables(ctx context.Context, schema, table string) (int64, error)
	CountFunctions(ctx context.Context, schema, function string) (int64, error)
	CallLogger(ctx context.Context, schema, function string) (bool, error)
}

type ConfigLogRepository interface {
	// WithinTx runs fn in one transaction, committing if fn returns nil and
	// rolling back otherwise.
	WithinTx(ctx context.Context, readOnly bool, fn func(q ConfigLogQuerier) error) error
}

type pgConfigLogRepository struct {
	db *sql.DB
}

func NewPgConfigLogRepository(db *sql.DB) ConfigLogRepository {
	return &pgConfigLogRepository{db: db}
}

func (r *pgConfigLogRepository) WithinTx(ctx context.Context, readOnly bool, fn func(q ConfigLogQuerier) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return queryFailed("pgConfigLogRepository.WithinTx: begin", err)
	}
	defer tx.Rollback()

	if err := fn(&pgConfigLogQuerier{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return queryFailed("pgConfigLogRepository.WithinTx: commit", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type pgConfigLogQuerier struct {
	q queryer
}

func (p *pgConfigLogQuerier) CountBaseTables(ctx context.Context, schema, table string) (int64, error) {
	query := `SELECT COUNT(*)
	          FROM information_schema.tables
	          WHERE table_schema = $1
	            AND table_name = $2
	            AND table_type = 'BASE TABLE'`
	rows, err := p.q.QueryContext(ctx, query, schema, table)
	if err != nil {
		return 0, queryFailed("pgConfigLogQuerier.CountBaseTables", err)
	}
	n, err := scanSingletonInt64(rows)
	if err != nil {
		return 0, fmt.Errorf("pgConfigLogQuerier.CountBaseTables: %w", err)
	}
	return n, nil
}

func (p *pgConfigLogQuerier) CountFunctions(ctx context.Context, schema, function string) (int64, error) {
	query := `SELECT COUNT(*)
	          FROM pg_catalog.pg_proc p
	          INNER JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
	          WHERE p.proname = $1
	            AND n.nspname = $2
	            AND p.pronargs = 0`
	rows, err := p.q.QueryContext(ctx, query, function, schema)
	if err != nil {
		return 0, queryFailed("pgConfigLogQuerier.CountFunctions", err)
	}
	n, err := scanSingletonInt64(rows)
	if err != nil {
		return 0, fmt.Errorf("pgConfigLogQuerier.CountFunctions: %w", err)
	}
	return n, nil
}

func (p *pgConfigLogQuerier) CallLogger(ctx context.Context, schema, function string) (bool, error) {
	rows, err := p.q.QueryContext(ctx, LoggerCallSQL(schema, function))
	if err != nil {
		return false, queryFailed("pgConfigLogQuerier.CallLogger", err)
	}
	changed, err := scanSingletonBool(rows)
	if err != nil {
		return false, fmt.Errorf("pgConfigLogQuerier.CallLogger: %w", err)
	}
	return changed, nil
}

// queryFailed wraps a driver error as ErrQueryFailed, naming the SQLSTATE
// when the server reported one.
func queryFailed(op string, err error) error {
	if code := common.SQLState(err); code != "" {
		return fmt.Errorf("%s: %w (SQLSTATE %s): %w", op, common.ErrQueryFailed, code, err)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrQueryFailed, err)
}

// LoggerCallSQL builds the call of a zero-argument function with both
// identifiers quoted.
func LoggerCallSQL(schema, function string) string {
	return "SELECT " + pgx.Identifier{schema, function}.Sanitize() + "()"
}

func scanSingletonInt64(rows *sql.Rows) (int64, error) {
	var v sql.NullInt64
	if err := scanSingleton(rows, &v); err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, common.ErrNullResult
	}
	return v.Int64, nil
}

func scanSingletonBool(rows *sql.Rows) (bool, error) {
	var v sql.NullBool
	if err := scanSingleton(rows, &v); err != nil {
		return false, err
	}
	if !v.Valid {
		return false, common.ErrNullResult
	}
	return v.Bool, nil
}

// scanSingleton scans the only column of the only row into dest and closes rows.
func scanSingleton(rows *sql.Rows, dest any) error {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrQueryFailed, err)
	}
	if len(cols) != 1 {
		return fmt.Errorf("%w: got %d", common.ErrUnexpectedColumns, len(cols))
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: %w", common.ErrQueryFailed, err)
		}
		return fmt.Errorf("%w: no rows", common.ErrNotSingleton)
	}
	if err := rows.Scan(dest); err != nil {
		return fmt.Errorf("%w: %w", common.ErrQueryFailed, err)
	}
	if rows.Next() {
		return fmt.Errorf("%w: more than one row", common.ErrNotSingleton)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrQueryFailed, err)
	}
	return nil
}
