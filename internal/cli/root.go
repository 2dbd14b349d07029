// Package cli implements the quizflow commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizflow/internal/config"
	"quizflow/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	format     string
}

// NewRootCmd builds the top-level command with every subcommand attached
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "quizflow",
		Short:        "Multi-step quiz engine and backend",
		Long:         "Serve the quiz backend, run scripted quiz sessions against it and inspect question catalogs.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: $QUIZFLOW_CONFIG or quizflow.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "json", "Output format: json or text")

	root.AddCommand(newServeCmd(opts), newSimulateCmd(opts), newCatalogCmd(opts))
	return root
}

func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	if env := os.Getenv("QUIZFLOW_CONFIG"); env != "" {
		return env
	}
	return "quizflow.yaml"
}

// load reads config and builds the logger
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.path())
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
