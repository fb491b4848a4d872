package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		index     int
		threshold float64
		format    string
		out       string
	)

	cmd := &cobra.Command{
		Use:   "export <source>",
		Short: "Write the similar questions of one entry to an xlsx or csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Similarity.DefaultThreshold
			}
			if out != "" {
				a.cfg.Export.Dir = out
			}

			eng, err := a.loadEngine(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer eng.Exporter.Close()

			path, err := eng.Export(index, threshold, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "position of the query question, starting at 0")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "minimum similarity percentage (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "xlsx or csv (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (overrides EXPORT_DIR)")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}
