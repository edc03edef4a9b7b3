package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entailgraph/internal/model"
	"github.com/sells-group/entailgraph/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	run, err := st.CreateRun(ctx, "sweep", "alignment")
	require.NoError(t, err)
	require.NoError(t, st.AppendResults(ctx, []model.EvaluationResult{
		{RunID: run.ID, Setting: "collapsed", Threshold: 0.9, Recall: 1, Precision: 0.5, F1: 0.6667},
	}))
	require.NoError(t, st.RecordSkips(ctx, []model.SkippedItem{
		{RunID: run.ID, Item: "d4", Stage: "load", Reason: "bad token"},
	}))
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete, &model.RunSummary{Units: 3, BestF1: 0.6667}))

	srv := httptest.NewServer(newRouter(st, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv, run.ID
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestServe_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServe_Runs(t *testing.T) {
	srv, runID := newTestServer(t)

	var runs []model.Run
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs", &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)

	runs = nil
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs?status=failed", &runs))
	assert.Empty(t, runs)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/runs?limit=abc", nil))
}

func TestServe_RunDetail(t *testing.T) {
	srv, runID := newTestServer(t)

	var run model.Run
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs/"+runID, &run))
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 3, run.Summary.Units)

	var results []model.EvaluationResult
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs/"+runID+"/results", &results))
	require.Len(t, results, 1)
	assert.Equal(t, "collapsed", results[0].Setting)

	var skips []model.SkippedItem
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs/"+runID+"/skips", &skips))
	require.Len(t, skips, 1)
	assert.Equal(t, "d4", skips[0].Item)
}

func TestServe_UnknownRun(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/runs/missing", &body))
	assert.Equal(t, "run not found", body["error"])
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/runs/missing/results", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/runs/missing/skips", nil))
}
