package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/knowledge-engine/questionsim/internal/config"
	"github.com/knowledge-engine/questionsim/internal/engine"
	"github.com/knowledge-engine/questionsim/internal/ingest"
	"github.com/knowledge-engine/questionsim/internal/storage"
)

// app carries what every subcommand needs once flags and config are resolved.
type app struct {
	logLevel  string
	logFormat string

	cfg *config.Config
	log *logrus.Entry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "questionsim",
		Short: "Find similar Arabic questions in a spreadsheet",
		Long: `questionsim loads a spreadsheet of questions (id, question) and ranks,
for any chosen entry, the other questions by character n-gram TF-IDF
cosine similarity.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json (overrides LOG_FORMAT)")

	root.AddCommand(newServeCmd(a), newSimilarCmd(a), newExportCmd(a))
	return root
}

func (a *app) setup(logOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.WithField("service", "questionsim")
	return nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	return logger, nil
}

func (a *app) newEngine() (*engine.Engine, error) {
	exporter, err := storage.NewFileExporter(a.cfg.Export.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exporter: %w", err)
	}
	loader := ingest.NewLoader(a.cfg.Ingest, a.log.WithField("component", "ingest"))
	return engine.NewEngine(a.cfg, a.log.WithField("component", "engine"), loader, exporter), nil
}

// loadEngine builds an engine and loads source into it synchronously.
func (a *app) loadEngine(ctx context.Context, source string) (*engine.Engine, error) {
	eng, err := a.newEngine()
	if err != nil {
		return nil, err
	}
	if _, err := eng.Load(ctx, source); err != nil {
		eng.Exporter.Close()
		return nil, fmt.Errorf("failed to load %s: %w", source, err)
	}
	return eng, nil
}
