package main

import (
	"github.com/spf13/cobra"

	"github.com/dataset-eval/backend/pkg/config"
	"github.com/dataset-eval/backend/pkg/logger"
)

var version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate customer-support datasets for quality, compliance and bias",
		Long: `evaluate scores a CSV dataset of customer messages.

Local checks (duplicates, missing values, language quality, PII patterns)
always run. Relevance, inferred PII and bias checks call a remote
chat-completion model and need an API key.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default: ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newCacheCommand(opts))

	return cmd
}

// load reads the configuration and routes logs to stderr so that stdout
// only carries the report.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(o.logLevel, "console", "stderr"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func execute() error {
	return newRootCommand().Execute()
}
