package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/config"
)

var version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "entailgraph",
	Short:         "Build and score entailment graphs",
	Long:          "Turns annotated documents into text fragments, asks an entailment oracle about every fragment pair, collapses mutually entailing fragments into equivalence classes and scores the raw and collapsed graphs against a gold clustering.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := setupConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "", "override log.level (debug, info, warn, error)")
	pf.String("log-format", "", "override log.format (json, console)")
}

// setupConfig loads configuration, applies the logging flags set on cmd and
// installs the global logger.
func setupConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load()
	if err != nil {
		return nil, eris.Wrap(err, "load config")
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		c.Log.Level = lvl
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		c.Log.Format = format
	}
	if err := config.InitLogger(c.Log); err != nil {
		return nil, eris.Wrap(err, "init logger")
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
