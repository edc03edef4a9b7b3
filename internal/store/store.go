// Package store persists experiment runs, evaluation results, skipped items
// and cached oracle decisions.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entailgraph/internal/config"
	"github.com/sells-group/entailgraph/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Name   string          `json:"name,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for experiment runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, name, oracle string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results table. A result for the same run, setting and threshold
	// replaces the earlier one.
	AppendResults(ctx context.Context, results []model.EvaluationResult) error
	ListResults(ctx context.Context, runID string) ([]model.EvaluationResult, error)

	// Skipped items
	RecordSkips(ctx context.Context, items []model.SkippedItem) error
	ListSkips(ctx context.Context, runID string) ([]model.SkippedItem, error)

	// Decision cache
	GetDecision(ctx context.Context, key string) (*model.Decision, error)
	SetDecision(ctx context.Context, key string, d model.Decision) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
