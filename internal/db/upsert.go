package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig defines the parameters for a bulk upsert operation.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
}

func (c UpsertConfig) validate() error {
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	for _, k := range c.ConflictKeys {
		if c.columnIndex(k) < 0 {
			return eris.Errorf("db: upsert: conflict key %s is not an inserted column", k)
		}
	}
	return nil
}

func (c UpsertConfig) columnIndex(name string) int {
	for i, col := range c.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

func (c UpsertConfig) updateColumns() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	var cols []string
	for _, col := range c.Columns {
		if !contains(c.ConflictKeys, col) {
			cols = append(cols, col)
		}
	}
	return cols
}

func (c UpsertConfig) tempTable() pgx.Identifier {
	return pgx.Identifier{"_tmp_upsert_" + strings.ReplaceAll(c.Table, ".", "_")}
}

// mergeSQL is the INSERT ... ON CONFLICT statement moving the temp table
// into the target.
func (c UpsertConfig) mergeSQL() string {
	cols := quoteAndJoin(c.Columns)
	set := make([]string, 0, len(c.Columns))
	for _, col := range c.updateColumns() {
		q := pgx.Identifier{col}.Sanitize()
		set = append(set, q+" = EXCLUDED."+q)
	}
	action := "DO NOTHING"
	if len(set) > 0 {
		action = "DO UPDATE SET " + strings.Join(set, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		identifier(c.Table).Sanitize(), cols, cols, c.tempTable().Sanitize(),
		quoteAndJoin(c.ConflictKeys), action)
}

// dedupe keeps the last row per conflict key. Postgres refuses an
// ON CONFLICT statement that touches the same row twice.
func (c UpsertConfig) dedupe(rows [][]any) [][]any {
	idx := make([]int, len(c.ConflictKeys))
	for i, k := range c.ConflictKeys {
		idx[i] = c.columnIndex(k)
	}

	pos := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		parts := make([]string, len(idx))
		for i, j := range idx {
			parts[i] = fmt.Sprint(row[j])
		}
		key := strings.Join(parts, "\x00")
		if p, ok := pos[key]; ok {
			out[p] = row
			continue
		}
		pos[key] = len(out)
		out = append(out, row)
	}
	return out
}

// BulkUpsert copies rows into a transaction-scoped temp table and merges
// them into the target. Rows sharing a conflict key collapse to the last one.
// It returns the number of rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	rows = cfg.dedupe(rows)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tmp := cfg.tempTable()
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		tmp.Sanitize(), identifier(cfg.Table).Sanitize())
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, tmp, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
