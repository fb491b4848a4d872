package main

import (
	"github.com/spf13/cobra"

	"github.com/knowledge-engine/questionsim/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr   string
		source string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			eng, err := a.newEngine()
			if err != nil {
				return err
			}
			defer eng.Exporter.Close()

			a.log.Info("Starting question similarity service")
			if source != "" {
				if err := eng.StartLoad(source); err != nil {
					return err
				}
			}

			server := api.NewServer(eng, a.log.WithField("component", "api"))
			return server.Start(a.cfg.Server)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SERVER_ADDR)")
	cmd.Flags().StringVar(&source, "load", "", "spreadsheet path or URL to load in the background at startup")
	return cmd
}
