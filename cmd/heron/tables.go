package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/opensource-finance/heron/internal/decision"
	"github.com/opensource-finance/heron/internal/scoring"
	"github.com/spf13/cobra"
)

func newTablesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Print the banding tables and risk thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTables(cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printTables(out io.Writer, asJSON bool) error {
	if err := scoring.ValidateTables(scoring.Tables()); err != nil {
		return err
	}
	view := scoring.Tables().Describe()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(view)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Tables version %s\n\n", view.Version)
	for _, t := range view.Tables {
		fmt.Fprintf(w, "%s\n", t.Factor)
		for _, b := range t.Bands {
			fmt.Fprintf(w, "  %s\t%d\t%s\n", b.Range, b.Points, b.Rationale)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "Risk levels")
	lower := decision.MinScore
	for _, th := range view.Thresholds {
		fmt.Fprintf(w, "  %d-%d\t%s\t%s\n", lower, th.MaxScore, th.Level.Label(), decision.Recommend(th.Level).Label())
		lower = th.MaxScore + 1
	}
	return w.Flush()
}
