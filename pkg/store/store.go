// Package store keeps the history of workshop runs in SQLite.
//
// Each run is stored with its parameters, outcome and full action log, so a
// past run can be listed, printed and re-verified later. History is written
// once, after the run has finished; nothing in it is ever fed back into a
// running workshop.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daviddao/northpole/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrNoRuns is returned by LatestRun on an empty history.
var ErrNoRuns = errors.New("no recorded runs")

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		elves             INTEGER NOT NULL,
		reindeer          INTEGER NOT NULL,
		elf_work          INTEGER NOT NULL,
		reindeer_vacation INTEGER NOT NULL,
		seed              INTEGER NOT NULL,
		status            TEXT NOT NULL,
		error             TEXT,
		actions           INTEGER NOT NULL DEFAULT 0,
		started_at        TEXT NOT NULL,
		finished_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS actions (
		run_id   INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq      INTEGER NOT NULL,
		role     TEXT NOT NULL,
		actor_id INTEGER NOT NULL DEFAULT 0,
		phrase   TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_actions_role ON actions(run_id, role, actor_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// SaveRun stores run and its actions in one transaction and returns the new
// run ID. run.ID and run.Actions are filled in on success.
func (s *Store) SaveRun(ctx context.Context, run *model.Run, actions []model.Action) (int64, error) {
	var id int64
	err := retryOp(ctx, defaultRetryConfig, func() error {
		var err error
		id, err = s.saveRunTx(ctx, run, actions)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	run.ID = id
	run.Actions = int64(len(actions))
	return id, nil
}

func (s *Store) saveRunTx(ctx context.Context, run *model.Run, actions []model.Action) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (elves, reindeer, elf_work, reindeer_vacation, seed, status, error, actions, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Params.Elves, run.Params.Reindeer, run.Params.ElfWork, run.Params.ReindeerVacation,
		run.Seed, string(run.Status), nullIfEmpty(run.Error), len(actions),
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO actions (run_id, seq, role, actor_id, phrase) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, a := range actions {
		if _, err := stmt.ExecContext(ctx, id, a.Seq, string(a.Role), a.ActorID, string(a.Phrase)); err != nil {
			return 0, fmt.Errorf("insert action %d: %w", a.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

const runColumns = `id, elves, reindeer, elf_work, reindeer_vacation, seed, status,
	COALESCE(error, ''), actions, started_at, finished_at`

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id int64) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// LatestRun returns the most recently recorded run, or ErrNoRuns.
func (s *Store) LatestRun(ctx context.Context) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	return r, err
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its actions.
func (s *Store) DeleteRun(ctx context.Context, id int64) error {
	return retryOp(ctx, defaultRetryConfig, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
		return err
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var r model.Run
	var status, startedStr, finishedStr string
	if err := row.Scan(&r.ID, &r.Params.Elves, &r.Params.Reindeer, &r.Params.ElfWork,
		&r.Params.ReindeerVacation, &r.Seed, &status, &r.Error, &r.Actions,
		&startedStr, &finishedStr); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	var err error
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedStr); err != nil {
		return nil, fmt.Errorf("parse started_at for run %d: %w", r.ID, err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedStr); err != nil {
		return nil, fmt.Errorf("parse finished_at for run %d: %w", r.ID, err)
	}
	return &r, nil
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// ListActions returns the actions of a run with seq >= sinceSeq in log
// order. A limit <= 0 returns all of them.
func (s *Store) ListActions(ctx context.Context, runID, sinceSeq int64, limit int) ([]model.Action, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, role, actor_id, phrase FROM actions
		 WHERE run_id = ? AND seq >= ?
		 ORDER BY seq ASC LIMIT ?`,
		runID, sinceSeq, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []model.Action
	for rows.Next() {
		var a model.Action
		var role, phrase string
		if err := rows.Scan(&a.Seq, &role, &a.ActorID, &phrase); err != nil {
			return nil, err
		}
		a.Role, a.Phrase = model.Role(role), model.Phrase(phrase)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// CountActions returns how many actions a run logged.
func (s *Store) CountActions(ctx context.Context, runID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
