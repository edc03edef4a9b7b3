package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/corpus"
	"github.com/sells-group/entailgraph/internal/fragment"
	"github.com/sells-group/entailgraph/internal/model"
)

var fragmentsCmd = &cobra.Command{
	Use:   "fragments <documents>",
	Short: "Print the entailment units derived from each document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, skips, err := corpus.LoadDocuments(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "fragments")
		}
		for _, s := range skips {
			fmt.Fprintf(os.Stderr, "skipped %s: %v\n", s.Item, s.Err)
		}

		opts := fragment.Options{Window: cfg.Fragment.Window, MaxModifiers: cfg.Fragment.MaxModifiers}
		if cmd.Flags().Changed("window") {
			opts.Window, _ = cmd.Flags().GetInt("window")
		}
		if cmd.Flags().Changed("max-modifiers") {
			opts.MaxModifiers, _ = cmd.Flags().GetInt("max-modifiers")
		}

		var units []model.EntailmentUnit
		for i := range docs {
			u, _, err := fragment.ForDocument(&docs[i], opts)
			if err != nil {
				zap.L().Warn("skipping document", zap.String("document", docs[i].ID), zap.Error(err))
				fmt.Fprintf(os.Stderr, "skipped %s: %v\n", docs[i].ID, err)
				continue
			}
			units = append(units, u...)
		}

		formatUnits(os.Stdout, units)
		return nil
	},
}

func formatUnits(w io.Writer, units []model.EntailmentUnit) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIT\tDOCUMENT\tSPAN\tTEXT")
	fmt.Fprintln(tw, "----\t--------\t----\t----")
	for _, u := range units {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.DocumentID, u.Span, u.Text)
	}
	tw.Flush()
}

func init() {
	fragmentsCmd.Flags().Int("window", fragment.DefaultWindow, "word tokens taken on each side of a keyword (default from config)")
	fragmentsCmd.Flags().Int("max-modifiers", fragment.DefaultMaxModifiers, "modifiers expanded per fragment (default from config)")
	rootCmd.AddCommand(fragmentsCmd)
}
