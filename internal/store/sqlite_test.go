package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entailgraph/internal/config"
	"github.com/sells-group/entailgraph/internal/model"
	"github.com/sells-group/entailgraph/internal/oracle"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var _ oracle.DecisionCache = (*SQLiteStore)(nil)
var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "baseline", "alignment")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusBuilding))
	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusBuilding, got.Status)
	assert.Nil(t, got.Summary)

	summary := &model.RunSummary{Documents: 3, Units: 12, Processed: 3, Skipped: 1, OracleCalls: 132, BestF1: 0.61}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete, summary))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "baseline", got.Name)
	assert.Equal(t, "alignment", got.Oracle)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, *summary, *got.Summary)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))

	err = st.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_ListRuns_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "a", "alignment")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "b", "edit_distance")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, a.ID, model.RunStatusFailed))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, a.ID, failed[0].ID)

	named, err := st.ListRuns(ctx, RunFilter{Name: "b"})
	require.NoError(t, err)
	require.Len(t, named, 1)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_Results_ReplaceSameSetting(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	run, err := st.CreateRun(ctx, "r", "alignment")
	require.NoError(t, err)

	require.NoError(t, st.AppendResults(ctx, []model.EvaluationResult{
		{RunID: run.ID, Setting: "raw without FG", Threshold: 0.9, Recall: 0.2, Precision: 0.5, F1: 0.2857},
		{RunID: run.ID, Setting: "collapsed", Threshold: 0.9, Recall: 0.4, Precision: 0.4, F1: 0.4},
		{RunID: run.ID, Setting: "collapsed", Threshold: 0.5, Recall: 0.6, Precision: 0.3, F1: 0.4},
	}))
	require.NoError(t, st.AppendResults(ctx, []model.EvaluationResult{
		{RunID: run.ID, Setting: "collapsed", Threshold: 0.9, Recall: 0.5, Precision: 0.5, F1: 0.5},
	}))

	results, err := st.ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "collapsed", results[0].Setting)
	assert.Equal(t, 0.9, results[0].Threshold)
	assert.Equal(t, 0.5, results[0].F1)
	assert.Equal(t, "raw without FG", results[1].Setting)
	assert.Equal(t, 0.5, results[2].Threshold)
}

func TestSQLite_Skips(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	run, err := st.CreateRun(ctx, "r", "alignment")
	require.NoError(t, err)

	require.NoError(t, st.RecordSkips(ctx, []model.SkippedItem{
		{RunID: run.ID, Item: "d2", Stage: "load", Reason: "offset beyond text"},
		{RunID: run.ID, Item: "d7", Stage: "fragment", Reason: "no keywords", ErrorType: "permanent"},
	}))
	require.NoError(t, st.RecordSkips(ctx, nil))

	skips, err := st.ListSkips(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, skips, 2)
	assert.Equal(t, "d2", skips[0].Item)
	assert.Equal(t, "permanent", skips[0].ErrorType)
	assert.NotEmpty(t, skips[0].ID)
}

func TestSQLite_DecisionCache(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	miss, err := st.GetDecision(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, st.SetDecision(ctx, "k", model.Decision{Label: model.LabelEntailment, Confidence: 0.8}))
	require.NoError(t, st.SetDecision(ctx, "k", model.Decision{Label: model.LabelNonEntailment, Confidence: 0.3}))

	hit, err := st.GetDecision(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, model.LabelNonEntailment, hit.Label)
	assert.Equal(t, 0.3, hit.Confidence)
}

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Open(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
