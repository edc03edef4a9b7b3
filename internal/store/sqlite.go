package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/entailgraph/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	oracle     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS evaluation_results (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	setting    TEXT NOT NULL,
	threshold  REAL NOT NULL,
	recall     REAL NOT NULL,
	precision  REAL NOT NULL,
	f1         REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (run_id, setting, threshold)
);

CREATE TABLE IF NOT EXISTS skipped_items (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	item       TEXT NOT NULL,
	stage      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	error_type TEXT NOT NULL DEFAULT 'permanent',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS oracle_decisions (
	key        TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	confidence REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON evaluation_results(run_id);
CREATE INDEX IF NOT EXISTS idx_skipped_run_id ON skipped_items(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, name, oracle string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, oracle, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, oracle, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Name:      name,
		Oracle:    oracle,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, oracle, status, summary, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, name, oracle, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Name != "" {
		query += ` AND name = ?`
		args = append(args, filter.Name)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) AppendResults(ctx context.Context, results []model.EvaluationResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin results tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range results {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO evaluation_results (id, run_id, setting, threshold, recall, precision, f1, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, setting, threshold) DO UPDATE SET
			   recall = excluded.recall, precision = excluded.precision, f1 = excluded.f1, created_at = excluded.created_at`,
			id, r.RunID, r.Setting, r.Threshold, r.Recall, r.Precision, r.F1, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s/%s", r.RunID, r.Setting)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit results")
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]model.EvaluationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, setting, threshold, recall, precision, f1, created_at
		 FROM evaluation_results WHERE run_id = ? ORDER BY threshold DESC, setting ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list results %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EvaluationResult
	for rows.Next() {
		var r model.EvaluationResult
		if err := rows.Scan(&r.ID, &r.RunID, &r.Setting, &r.Threshold, &r.Recall, &r.Precision, &r.F1, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) RecordSkips(ctx context.Context, items []model.SkippedItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin skips tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, it := range items {
		id := it.ID
		if id == "" {
			id = uuid.New().String()
		}
		errType := it.ErrorType
		if errType == "" {
			errType = "permanent"
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO skipped_items (id, run_id, item, stage, reason, error_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, it.RunID, it.Item, it.Stage, it.Reason, errType, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert skipped item %s", it.Item)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit skips")
}

func (s *SQLiteStore) ListSkips(ctx context.Context, runID string) ([]model.SkippedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, item, stage, reason, error_type, created_at
		 FROM skipped_items WHERE run_id = ? ORDER BY created_at ASC, item ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list skips %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SkippedItem
	for rows.Next() {
		var it model.SkippedItem
		if err := rows.Scan(&it.ID, &it.RunID, &it.Item, &it.Stage, &it.Reason, &it.ErrorType, &it.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan skipped item")
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list skips iterate")
}

func (s *SQLiteStore) GetDecision(ctx context.Context, key string) (*model.Decision, error) {
	var d model.Decision
	var label string
	err := s.db.QueryRowContext(ctx,
		`SELECT label, confidence FROM oracle_decisions WHERE key = ?`, key,
	).Scan(&label, &d.Confidence)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get decision")
	}
	d.Label = model.ParseLabel(label)
	return &d, nil
}

func (s *SQLiteStore) SetDecision(ctx context.Context, key string, d model.Decision) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oracle_decisions (key, label, confidence, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET label = excluded.label, confidence = excluded.confidence`,
		key, string(d.Label), d.Confidence, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set decision")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.Name, &r.Oracle, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if summaryJSON.Valid {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}
