package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RunRecord is one sync_run row: a single integration cycle.
type RunRecord struct {
	ID         string  `db:"id" json:"id"`
	StartedAt  string  `db:"started_at" json:"started_at"`
	FinishedAt *string `db:"finished_at" json:"finished_at,omitempty"`
	Applied    int64   `db:"applied" json:"applied"`
	Skipped    int64   `db:"skipped" json:"skipped"`
	Errored    int64   `db:"errored" json:"errored"`
	Error      *string `db:"error" json:"error,omitempty"`
}

// StartRun records the start of an integration cycle.
func (s *Store) StartRun(ctx context.Context, run RunRecord) error {
	ib := s.flavor.NewInsertBuilder()
	ib.InsertInto("sync_run").Cols("id", "started_at").Values(run.ID, run.StartedAt)
	ib.SQL("ON CONFLICT (id) DO NOTHING")

	query, args := ib.Build()
	_, err := s.db.ExecContext(ctx, query, args...)
	return storageErr("start run", err)
}

// FinishRun records the totals and outcome of an integration cycle.
func (s *Store) FinishRun(ctx context.Context, run RunRecord) error {
	ub := s.flavor.NewUpdateBuilder()
	ub.Update("sync_run").
		Set(
			ub.Assign("finished_at", run.FinishedAt),
			ub.Assign("applied", run.Applied),
			ub.Assign("skipped", run.Skipped),
			ub.Assign("errored", run.Errored),
			ub.Assign("error", run.Error),
		).
		Where(ub.Equal("id", run.ID))

	query, args := ub.Build()
	_, err := s.db.ExecContext(ctx, query, args...)
	return storageErr("finish run", err)
}

// GetRun returns one run by id. Returns ErrNotFound if it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	var run RunRecord
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`
		SELECT id, started_at, finished_at, applied, skipped, errored, error
		FROM sync_run
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, storageErr("get run", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("id", "started_at", "finished_at", "applied", "skipped", "errored", "error").
		From("sync_run").
		OrderBy("started_at", "id").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	runs := []RunRecord{}
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, storageErr("list runs", err)
	}
	return runs, nil
}
