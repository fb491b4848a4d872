package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/knowledge-engine/questionsim/internal/engine"
	"github.com/knowledge-engine/questionsim/internal/storage"
)

func newSimilarCmd(a *app) *cobra.Command {
	var (
		index     int
		threshold float64
		top       int
	)

	cmd := &cobra.Command{
		Use:   "similar <source>",
		Short: "Print the questions most similar to one entry of a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Similarity.DefaultThreshold
			}
			if top > 0 {
				a.cfg.Similarity.TopN = top
			}

			eng, err := a.loadEngine(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer eng.Exporter.Close()

			res, err := eng.Similar(index, threshold)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "position of the query question, starting at 0")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "minimum similarity percentage (default from config)")
	cmd.Flags().IntVarP(&top, "top", "n", 0, "maximum number of matches (default from config)")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func printResult(w io.Writer, res *engine.QueryResult) {
	fmt.Fprintf(w, "Query [%d] %s: %s\n", res.Query.Index, res.Query.ID, res.Query.Text)

	if len(res.Matches) == 0 {
		fmt.Fprintf(w, "No similar questions at or above %s.\n", storage.FormatPercent(res.Threshold))
		return
	}

	fmt.Fprintf(w, "%d matches at or above %s:\n\n", len(res.Matches), storage.FormatPercent(res.Threshold))
	for _, m := range res.Matches {
		// [index] percent (band) id: text
		fmt.Fprintf(w, "[%d] %7s (%s) %s: %s\n", m.Position, storage.FormatPercent(m.Percent), m.Band, m.ID, m.Text)
	}
}
