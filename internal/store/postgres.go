package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/entailgraph/internal/db"
	"github.com/sells-group/entailgraph/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, name, oracle, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, name, oracle, status, summary, created_at, updated_at FROM runs WHERE id = $1`,
	"get_decision":      `SELECT label, confidence FROM oracle_decisions WHERE key = $1`,
	"set_decision":      `INSERT INTO oracle_decisions (key, label, confidence, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (key) DO UPDATE SET label = EXCLUDED.label, confidence = EXCLUDED.confidence`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	oracle     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS evaluation_results (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	setting    TEXT NOT NULL,
	threshold  DOUBLE PRECISION NOT NULL,
	recall     DOUBLE PRECISION NOT NULL,
	precision  DOUBLE PRECISION NOT NULL,
	f1         DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (run_id, setting, threshold)
);

CREATE TABLE IF NOT EXISTS skipped_items (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	item       TEXT NOT NULL,
	stage      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	error_type TEXT NOT NULL DEFAULT 'permanent',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS oracle_decisions (
	key        TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON evaluation_results(run_id);
CREATE INDEX IF NOT EXISTS idx_skipped_run_id ON skipped_items(run_id);
`

var (
	resultColumns = []string{"id", "run_id", "setting", "threshold", "recall", "precision", "f1", "created_at"}
	skipColumns   = []string{"id", "run_id", "item", "stage", "reason", "error_type", "created_at"}
)

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, name, oracle string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, name, oracle, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, name, oracle, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var summaryJSON []byte

	if err := row.Scan(&r.ID, &r.Name, &r.Oracle, &status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if summaryJSON != nil {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx,
		`SELECT id, name, oracle, status, summary, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, name, oracle, status, summary, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Name != "" {
		query += fmt.Sprintf(` AND name = $%d`, argIdx)
		args = append(args, filter.Name)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// AppendResults merges results through a COPY-backed upsert.
func (s *PostgresStore) AppendResults(ctx context.Context, results []model.EvaluationResult) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{id, r.RunID, r.Setting, r.Threshold, r.Recall, r.Precision, r.F1, now})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "evaluation_results",
		Columns:      resultColumns,
		ConflictKeys: []string{"run_id", "setting", "threshold"},
		UpdateCols:   []string{"recall", "precision", "f1", "created_at"},
	}, rows)
	return eris.Wrap(err, "postgres: append results")
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string) ([]model.EvaluationResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, setting, threshold, recall, precision, f1, created_at
		 FROM evaluation_results WHERE run_id = $1 ORDER BY threshold DESC, setting ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list results %s", runID)
	}
	defer rows.Close()

	var out []model.EvaluationResult
	for rows.Next() {
		var r model.EvaluationResult
		if err := rows.Scan(&r.ID, &r.RunID, &r.Setting, &r.Threshold, &r.Recall, &r.Precision, &r.F1, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

// RecordSkips bulk-inserts skipped items with COPY.
func (s *PostgresStore) RecordSkips(ctx context.Context, items []model.SkippedItem) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		id := it.ID
		if id == "" {
			id = uuid.New().String()
		}
		errType := it.ErrorType
		if errType == "" {
			errType = "permanent"
		}
		rows = append(rows, []any{id, it.RunID, it.Item, it.Stage, it.Reason, errType, now})
	}
	_, err := db.CopyFrom(ctx, s.pool, "skipped_items", skipColumns, rows)
	return eris.Wrap(err, "postgres: record skips")
}

func (s *PostgresStore) ListSkips(ctx context.Context, runID string) ([]model.SkippedItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, item, stage, reason, error_type, created_at
		 FROM skipped_items WHERE run_id = $1 ORDER BY created_at ASC, item ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list skips %s", runID)
	}
	defer rows.Close()

	var out []model.SkippedItem
	for rows.Next() {
		var it model.SkippedItem
		if err := rows.Scan(&it.ID, &it.RunID, &it.Item, &it.Stage, &it.Reason, &it.ErrorType, &it.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan skipped item")
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list skips iterate")
}

func (s *PostgresStore) GetDecision(ctx context.Context, key string) (*model.Decision, error) {
	var d model.Decision
	var label string
	err := s.pool.QueryRow(ctx,
		`SELECT label, confidence FROM oracle_decisions WHERE key = $1`, key,
	).Scan(&label, &d.Confidence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get decision")
	}
	d.Label = model.ParseLabel(label)
	return &d, nil
}

func (s *PostgresStore) SetDecision(ctx context.Context, key string, d model.Decision) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO oracle_decisions (key, label, confidence, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET label = EXCLUDED.label, confidence = EXCLUDED.confidence`,
		key, string(d.Label), d.Confidence, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set decision")
}
