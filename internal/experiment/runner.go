package experiment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/corpus"
	"github.com/sells-group/entailgraph/internal/evaluation"
	"github.com/sells-group/entailgraph/internal/export"
	"github.com/sells-group/entailgraph/internal/fragment"
	"github.com/sells-group/entailgraph/internal/graph"
	"github.com/sells-group/entailgraph/internal/model"
	"github.com/sells-group/entailgraph/internal/oracle"
	"github.com/sells-group/entailgraph/internal/report"
	"github.com/sells-group/entailgraph/internal/resilience"
	"github.com/sells-group/entailgraph/internal/store"
)

// Skip stages.
const (
	StageLoad     = "load"
	StageFragment = "fragment"
	StageGold     = "gold"
)

// Outcome is everything a finished (or failed) run produced.
type Outcome struct {
	Run     *model.Run
	Results []model.EvaluationResult
	Skipped []model.SkippedItem
	Stats   graph.BuildStats
}

// Runner executes plans against one oracle and records them in a store.
type Runner struct {
	store  store.Store
	oracle oracle.Oracle
	build  graph.BuildOptions
}

// NewRunner creates a Runner. build.MinConfidence is replaced by each plan's
// loosest threshold.
func NewRunner(st store.Store, o oracle.Oracle, build graph.BuildOptions) *Runner {
	return &Runner{store: st, oracle: o, build: build}
}

// Corpus is the unit set derived from a document collection.
type Corpus struct {
	Documents     int
	Processed     int
	Units         []model.EntailmentUnit
	FragmentEdges []model.EntailmentRelation
	Skipped       []model.SkippedItem
}

func skipped(runID, item, stage string, err error) model.SkippedItem {
	return model.SkippedItem{
		RunID:     runID,
		Item:      item,
		Stage:     stage,
		Reason:    err.Error(),
		ErrorType: resilience.Classify(err),
	}
}

// LoadCorpus reads documents and turns each into entailment units. Documents
// that fail to load or fragment are skipped; runID tags the skip records.
func LoadCorpus(ctx context.Context, runID string, plan Plan) (*Corpus, error) {
	docs, skips, err := corpus.LoadDocuments(ctx, plan.Documents)
	if err != nil {
		return nil, err
	}

	c := &Corpus{Documents: len(docs) + len(skips)}
	for _, s := range skips {
		c.Skipped = append(c.Skipped, skipped(runID, s.Item, StageLoad, s.Err))
	}

	seen := make(map[string]bool, len(docs))
	opts := plan.fragmentOptions()
	for i := range docs {
		doc := &docs[i]
		if seen[doc.ID] {
			err := eris.Wrapf(model.ErrDataIntegrity, "experiment: duplicate document %s", doc.ID)
			zap.L().Warn("skipping document", zap.String("document", doc.ID), zap.Error(err))
			c.Skipped = append(c.Skipped, skipped(runID, doc.ID, StageLoad, err))
			continue
		}
		seen[doc.ID] = true

		units, edges, err := fragment.ForDocument(doc, opts)
		if err != nil {
			zap.L().Warn("skipping document", zap.String("document", doc.ID), zap.Error(err))
			c.Skipped = append(c.Skipped, skipped(runID, doc.ID, StageFragment, err))
			continue
		}
		c.Processed++
		c.Units = append(c.Units, units...)
		c.FragmentEdges = append(c.FragmentEdges, edges...)
	}
	return c, nil
}

// Run executes plan end to end. The run row is always completed, as failed
// when an error is returned.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Outcome, error) {
	if err := plan.Normalize(); err != nil {
		return nil, err
	}
	start := time.Now()

	run, err := r.store.CreateRun(ctx, plan.Name, r.oracle.Name())
	if err != nil {
		return nil, eris.Wrap(err, "experiment: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("experiment", plan.Name))
	out := &Outcome{Run: run}
	summary := &model.RunSummary{}

	err = r.execute(ctx, run, plan, out, summary, log)

	// Bookkeeping must land even if ctx was cancelled.
	bg := context.WithoutCancel(ctx)
	summary.Skipped = len(out.Skipped)
	summary.DurationMs = time.Since(start).Milliseconds()
	if best, ok := report.Best(out.Results); ok {
		summary.BestF1 = best.F1
	}
	status := model.RunStatusComplete
	if err != nil {
		status = model.RunStatusFailed
		summary.Error = err.Error()
	}

	if serr := r.store.RecordSkips(bg, out.Skipped); serr != nil {
		log.Error("failed to record skipped items", zap.Error(serr))
	}
	if cerr := r.store.CompleteRun(bg, run.ID, status, summary); cerr != nil {
		log.Error("failed to complete run", zap.Error(cerr))
		if err == nil {
			err = eris.Wrap(cerr, "experiment: complete run")
		}
	}
	run.Status = status
	run.Summary = summary

	log.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("documents", summary.Documents),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("units", summary.Units),
		zap.Int64("oracle_calls", summary.OracleCalls),
		zap.Int64("oracle_failures", summary.OracleFailures),
		zap.Float64("best_f1", summary.BestF1),
	)
	return out, err
}

func (r *Runner) execute(ctx context.Context, run *model.Run, plan Plan, out *Outcome, summary *model.RunSummary, log *zap.Logger) error {
	if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusBuilding); err != nil {
		return eris.Wrap(err, "experiment: update status")
	}

	c, err := LoadCorpus(ctx, run.ID, plan)
	if err != nil {
		return eris.Wrap(err, "experiment: load corpus")
	}
	out.Skipped = append(out.Skipped, c.Skipped...)
	summary.Documents = c.Documents
	summary.Processed = c.Processed
	summary.Units = len(c.Units)
	if len(c.Units) == 0 {
		return eris.Wrap(model.ErrGraphGeneration, "experiment: no document produced entailment units")
	}

	var gold evaluation.GoldStandard
	hasGold := plan.Gold != ""
	if hasGold {
		g, skips, err := corpus.LoadGoldStandard(ctx, plan.Gold)
		for _, s := range skips {
			out.Skipped = append(out.Skipped, skipped(run.ID, s.Item, StageGold, s.Err))
		}
		if err != nil {
			return eris.Wrap(err, "experiment: load gold standard")
		}
		gold = g
	}

	dir := ""
	if plan.OutputDir != "" {
		dir = filepath.Join(plan.OutputDir, run.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "experiment: create output dir %s", dir)
		}
	}

	opts := r.build
	opts.MinConfidence = plan.MinThreshold()
	raw, stats, err := graph.NewBuilder(r.oracle, opts).Build(ctx, c.Units, c.FragmentEdges)
	out.Stats = stats
	summary.OracleCalls = stats.Calls
	summary.OracleFailures = stats.Failures
	if err != nil {
		if raw != nil {
			r.savePartial(dir, raw, log)
		}
		return err
	}

	if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusEvaluating); err != nil {
		return eris.Wrap(err, "experiment: update status")
	}

	for _, th := range plan.Thresholds {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "experiment: cancelled")
		}
		results, err := r.evaluateThreshold(run.ID, th, raw, gold, hasGold, plan, dir)
		if err != nil {
			return err
		}
		out.Results = append(out.Results, results...)
		for _, res := range results {
			log.Info("evaluated",
				zap.String("setting", res.Setting),
				zap.Float64("threshold", th),
				zap.Float64("precision", res.Precision),
				zap.Float64("recall", res.Recall),
				zap.Float64("f1", res.F1),
			)
		}
	}

	if err := r.store.AppendResults(ctx, out.Results); err != nil {
		return eris.Wrap(err, "experiment: append results")
	}
	return nil
}

func (r *Runner) evaluateThreshold(runID string, th float64, raw *graph.RawGraph, gold evaluation.GoldStandard, hasGold bool, plan Plan, dir string) ([]model.EvaluationResult, error) {
	filtered := raw.Filter(th)
	if err := writeGraph(dir, "raw", th, func(w io.Writer) error { return export.WriteRawXML(w, filtered) },
		func(w io.Writer) error { return export.WriteRawDOT(w, filtered) }); err != nil {
		return nil, err
	}

	collapsed := graph.Collapse(filtered, th)
	if err := collapsed.CheckPartition(filtered); err != nil {
		return nil, err
	}
	if err := writeGraph(dir, "collapsed", th, func(w io.Writer) error { return export.WriteCollapsedXML(w, collapsed) },
		func(w io.Writer) error { return export.WriteCollapsedDOT(w, collapsed) }); err != nil {
		return nil, err
	}

	var results []model.EvaluationResult
	add := func(setting string, m evaluation.Measures) {
		results = append(results, model.EvaluationResult{
			RunID:     runID,
			Setting:   setting,
			Threshold: th,
			Recall:    m.Recall,
			Precision: m.Precision,
			F1:        m.F1,
		})
	}
	if hasGold {
		add(SettingRawWithoutFG, evaluation.EvaluateRawGraph(filtered, gold, false, plan.SingleClusterGold))
		add(SettingRawWithFG, evaluation.EvaluateRawGraph(filtered, gold, true, plan.SingleClusterGold))
		add(SettingCollapsed, evaluation.EvaluateCollapsedGraph(collapsed, gold, plan.SingleClusterGold))
	}

	added := graph.ApplyTransitiveClosure(collapsed, plan.StrictClosure)
	zap.L().Debug("transitive closure applied", zap.Float64("threshold", th), zap.Int("added", added))
	if err := writeGraph(dir, "closure", th, func(w io.Writer) error { return export.WriteCollapsedXML(w, collapsed) },
		func(w io.Writer) error { return export.WriteCollapsedDOT(w, collapsed) }); err != nil {
		return nil, err
	}
	if hasGold {
		add(SettingCollapsedClosure, evaluation.EvaluateCollapsedGraph(collapsed, gold, plan.SingleClusterGold))
	}
	return results, nil
}

// savePartial exports the raw graph of an interrupted build as
// raw_partial.xml and .dot so the decisions made so far are not lost.
func (r *Runner) savePartial(dir string, raw *graph.RawGraph, log *zap.Logger) {
	log.Warn("build interrupted, keeping partial raw graph",
		zap.Int("units", raw.NumUnits()),
		zap.Int("edges", raw.NumEdges()),
	)
	if dir == "" {
		return
	}
	base := filepath.Join(dir, "raw_partial")
	if err := writeFiles(base, func(w io.Writer) error { return export.WriteRawXML(w, raw) },
		func(w io.Writer) error { return export.WriteRawDOT(w, raw) }); err != nil {
		log.Error("failed to export partial raw graph", zap.Error(err))
	}
}

// writeGraph writes <kind>_<threshold>.xml and .dot into dir. An empty dir
// disables export.
func writeGraph(dir, kind string, th float64, xmlFn, dotFn func(io.Writer) error) error {
	if dir == "" {
		return nil
	}
	return writeFiles(filepath.Join(dir, fmt.Sprintf("%s_%.2f", kind, th)), xmlFn, dotFn)
}

func writeFiles(base string, xmlFn, dotFn func(io.Writer) error) error {
	for ext, fn := range map[string]func(io.Writer) error{".xml": xmlFn, ".dot": dotFn} {
		f, err := os.Create(base + ext)
		if err != nil {
			return eris.Wrapf(err, "experiment: create %s", base+ext)
		}
		if err := fn(f); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "experiment: close %s", base+ext)
		}
	}
	return nil
}
