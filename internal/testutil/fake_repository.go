package testutil

import (
	"context"
	"sync"

	"github.com/ibarwick/config-log/internal/domain/repository"
)

// FakeConfigLogRepository is an in-memory ConfigLogRepository. Objects are
// keyed by "schema.name". CallLogger returns Results in order and keeps
// returning the last one, which models a logger that records changes once
// and then finds nothing new.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeConfigLogRepository struct {
	mu sync.Mutex

	Tables    map[string]int64
	Functions map[string]int64
	Results   []bool

	CountErr error
	CallErr  error

	// OnCall runs after every CallLogger with the 1-based call number.
	OnCall func(n int)

	txs       int
	commits   int
	rollbacks int
	calls     int
	readOnly  []bool
}

// NewFakeConfigLogRepository returns a repository where public.pg_settings_log
// and public.pg_settings_logger exist and the logger reports changes once.
func NewFakeConfigLogRepository() *FakeConfigLogRepository {
	return &FakeConfigLogRepository{
		Tables:    map[string]int64{"public.pg_settings_log": 1},
		Functions: map[string]int64{"public.pg_settings_logger": 1},
		Results:   []bool{true, false},
	}
}

func (r *FakeConfigLogRepository) WithinTx(ctx context.Context, readOnly bool, fn func(q repository.ConfigLogQuerier) error) error {
	r.mu.Lock()
	r.txs++
	r.readOnly = append(r.readOnly, readOnly)
	r.mu.Unlock()

	err := fn(fakeQuerier{r})

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.rollbacks++
		return err
	}
	r.commits++
	return nil
}

func (r *FakeConfigLogRepository) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *FakeConfigLogRepository) Transactions() (total, commits, rollbacks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txs, r.commits, r.rollbacks
}

func (r *FakeConfigLogRepository) ReadOnlyTxs() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.readOnly...)
}

type fakeQuerier struct {
	r *FakeConfigLogRepository
}

func (q fakeQuerier) CountBaseTables(ctx context.Context, schema, table string) (int64, error) {
	q.r.mu.Lock()
	defer q.r.mu.Unlock()
	if q.r.CountErr != nil {
		return 0, q.r.CountErr
	}
	return q.r.Tables[schema+"."+table], nil
}

func (q fakeQuerier) CountFunctions(ctx context.Context, schema, function string) (int64, error) {
	q.r.mu.Lock()
	defer q.r.mu.Unlock()
	if q.r.CountErr != nil {
		return 0, q.r.CountErr
	}
	return q.r.Functions[schema+"."+function], nil
}

func (q fakeQuerier) CallLogger(ctx context.Context, schema, function string) (bool, error) {
	q.r.mu.Lock()
	if q.r.CallErr != nil {
		err := q.r.CallErr
		q.r.mu.Unlock()
		return false, err
	}
	q.r.calls++
	n := q.r.calls
	changed := false
	if len(q.r.Results) > 0 {
		idx := n - 1
		if idx >= len(q.r.Results) {
			idx = len(q.r.Results) - 1
		}
		changed = q.r.Results[idx]
	}
	hook := q.r.OnCall
	q.r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return changed, nil
}
