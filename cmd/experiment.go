package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/experiment"
	"github.com/sells-group/entailgraph/internal/graph"
	"github.com/sells-group/entailgraph/internal/oracle"
	"github.com/sells-group/entailgraph/internal/report"
)

// addPlanFlags registers the flags shared by build and evaluate.
func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().String("plan", "", "YAML experiment plan (fields override config)")
	cmd.Flags().String("name", "", "experiment name (default from config)")
	cmd.Flags().String("oracle", "", "oracle to use: alignment, edit_distance, claude (default from config)")
	cmd.Flags().Float64Slice("thresholds", nil, "confidence thresholds (default from config)")
	cmd.Flags().Bool("strict", false, "closure follows ENTAILMENT edges only")
	cmd.Flags().String("output", "", "directory for exported graphs (default from config)")
	cmd.Flags().String("export", "", "write the results table to a .csv or .xlsx file")
}

// planFromFlags assembles the plan from config, an optional plan file, the
// positional arguments and flag overrides, in that order.
func planFromFlags(cmd *cobra.Command, documents, gold string) (experiment.Plan, error) {
	plan := experiment.PlanFromConfig(cfg, "", "")
	if path, _ := cmd.Flags().GetString("plan"); path != "" {
		p, err := experiment.LoadPlan(path, cfg)
		if err != nil {
			return experiment.Plan{}, err
		}
		plan = p
	}
	if documents != "" {
		plan.Documents = documents
	}
	if gold != "" {
		plan.Gold = gold
	}

	f := cmd.Flags()
	if f.Changed("name") {
		plan.Name, _ = f.GetString("name")
	}
	if f.Changed("thresholds") {
		plan.Thresholds, _ = f.GetFloat64Slice("thresholds")
	}
	if f.Changed("strict") {
		plan.StrictClosure, _ = f.GetBool("strict")
	}
	if f.Changed("single-cluster") {
		plan.SingleClusterGold, _ = f.GetBool("single-cluster")
	}
	if f.Changed("output") {
		plan.OutputDir, _ = f.GetString("output")
	}
	return plan, plan.Normalize()
}

// runExperiment executes plan with the configured oracle and prints the
// results table.
func runExperiment(cmd *cobra.Command, mode string, plan experiment.Plan, out io.Writer) error {
	if name, _ := cmd.Flags().GetString("oracle"); name != "" {
		cfg.Oracle.Name = name
	}
	if err := cfg.Validate(mode); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	o, err := oracle.New(cfg.Oracle, cfg.Anthropic, oracle.Deps{Cache: st})
	if err != nil {
		return err
	}

	runner := experiment.NewRunner(st, o, graph.BuildOptions{
		Concurrency: cfg.Oracle.Concurrency,
		CallTimeout: time.Duration(cfg.Oracle.TimeoutSecs) * time.Second,
	})
	outcome, err := runner.Run(ctx, plan)
	if outcome != nil {
		fmt.Fprintf(out, "run %s %s: %d documents, %d units, %d skipped, %d oracle calls\n",
			outcome.Run.ID, outcome.Run.Status,
			outcome.Run.Summary.Documents, outcome.Run.Summary.Units,
			outcome.Run.Summary.Skipped, outcome.Run.Summary.OracleCalls)
	}
	if err != nil {
		return eris.Wrap(err, mode)
	}

	if len(outcome.Results) > 0 {
		if err := report.WriteTable(out, outcome.Results); err != nil {
			return err
		}
	}
	if path, _ := cmd.Flags().GetString("export"); path != "" {
		if err := report.Export(path, outcome.Results); err != nil {
			return err
		}
		zap.L().Info("results exported", zap.String("path", path), zap.Int("rows", len(outcome.Results)))
	}
	return nil
}

var buildCmd = &cobra.Command{
	Use:   "build [documents]",
	Short: "Build and export entailment graphs without scoring them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var documents string
		if len(args) > 0 {
			documents = args[0]
		}
		plan, err := planFromFlags(cmd, documents, "")
		if err != nil {
			return err
		}
		plan.Gold = ""
		return runExperiment(cmd, "build", plan, os.Stdout)
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [documents] [gold]",
	Short: "Build entailment graphs and score every setting against a gold standard",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var documents, gold string
		if len(args) > 0 {
			documents = args[0]
		}
		if len(args) > 1 {
			gold = args[1]
		}
		plan, err := planFromFlags(cmd, documents, gold)
		if err != nil {
			return err
		}
		if plan.Gold == "" {
			return eris.New("evaluate: a gold standard is required")
		}
		return runExperiment(cmd, "evaluate", plan, os.Stdout)
	},
}

func init() {
	addPlanFlags(buildCmd)
	addPlanFlags(evaluateCmd)
	evaluateCmd.Flags().Bool("single-cluster", false, "score the whole gold standard as one unit")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(evaluateCmd)
}
