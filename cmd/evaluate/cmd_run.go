package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dataset-eval/backend/internal/bootstrap"
	"github.com/dataset-eval/backend/internal/checks"
	"github.com/dataset-eval/backend/internal/classifier"
	"github.com/dataset-eval/backend/internal/dataset"
	"github.com/dataset-eval/backend/internal/evaluation"
	"github.com/dataset-eval/backend/pkg/logger"
)

type runOptions struct {
	relevance           bool
	pii                 bool
	bias                bool
	qualityThreshold    float64
	complianceThreshold float64
	workers             int
	output              string
	reportPath          string
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <dataset.csv>",
		Short: "Evaluate a dataset and write the flagged copy",
		Long: `Evaluate a CSV dataset with the columns customer_message, name and
contact_info.

The flagged dataset is written next to the input as evaluated_<name>.csv
unless --output is given. The exit code is 1 when the dataset is not fit
for purpose.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runE(cmd, root, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.relevance, "relevance", false, "Classify message relevance with the model")
	f.BoolVar(&opts.pii, "pii", false, "Detect PII with patterns and the model")
	f.BoolVar(&opts.bias, "bias", false, "Detect language and gender bias with the model")
	f.Float64Var(&opts.qualityThreshold, "quality-threshold", 0, "Minimum quality score (default from config)")
	f.Float64Var(&opts.complianceThreshold, "compliance-threshold", 0, "Minimum compliance score (default from config)")
	f.IntVar(&opts.workers, "workers", 0, "Records classified concurrently (default from config)")
	f.StringVarP(&opts.output, "output", "o", "", "Path of the flagged dataset")
	f.StringVar(&opts.reportPath, "report", "", "Also write the text report to this path")

	return cmd
}

func runE(cmd *cobra.Command, root *rootOptions, opts *runOptions, path string) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	evalOpts := evaluation.Options{
		QualityThreshold:    cfg.Checks.QualityThreshold,
		ComplianceThreshold: cfg.Checks.ComplianceThreshold,
		Relevance:           cfg.Checks.Relevance,
		PII:                 cfg.Checks.PII,
		Bias:                cfg.Checks.Bias,
		Workers:             cfg.Checks.Workers,
	}
	flags := cmd.Flags()
	if flags.Changed("relevance") {
		evalOpts.Relevance = opts.relevance
	}
	if flags.Changed("pii") {
		evalOpts.PII = opts.pii
	}
	if flags.Changed("bias") {
		evalOpts.Bias = opts.bias
	}
	if flags.Changed("quality-threshold") {
		evalOpts.QualityThreshold = opts.qualityThreshold
	}
	if flags.Changed("compliance-threshold") {
		evalOpts.ComplianceThreshold = opts.complianceThreshold
	}
	if flags.Changed("workers") {
		evalOpts.Workers = opts.workers
	}

	ds, err := dataset.LoadCSV(path)
	if err != nil {
		return err
	}

	var store classifier.Store
	redisClient, err := bootstrap.Redis(cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, verdicts will only be cached in memory", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close()
		store = redisClient
	}

	catalog, err := bootstrap.Catalog(cfg, store)
	if err != nil {
		return err
	}

	result, err := evaluation.NewEvaluator(catalog).Evaluate(cmd.Context(), ds, evalOpts)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", path, err)
	}

	output := opts.output
	if output == "" {
		output = filepath.Join(filepath.Dir(path), "evaluated_"+filepath.Base(path))
	}
	if err := writeFlagged(output, result.Dataset); err != nil {
		return err
	}

	if opts.reportPath != "" {
		if err := os.WriteFile(opts.reportPath, []byte(result.Report), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	printVerdict(out, result.Verdict)
	fmt.Fprintln(out)
	fmt.Fprint(out, result.Report)
	fmt.Fprintf(out, "\nFlagged dataset written to %s\n", output)

	if c, ok := catalog.(*checks.Catalog); ok {
		logger.Info("Classifier calls", zap.Any("calls", c.Calls()))
	}

	if !result.Verdict.FitForPurpose {
		issues := make([]string, len(result.Verdict.TopIssues))
		for i, issue := range result.Verdict.TopIssues {
			issues[i] = string(issue)
		}
		return &NotFitError{Issues: issues}
	}
	return nil
}

func writeFlagged(path string, ds *dataset.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := dataset.WriteCSV(f, ds); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func printVerdict(w io.Writer, v evaluation.Verdict) {
	fmt.Fprintf(w, "Verdict: %s\n", v.Assessment())
	if len(v.TopIssues) == 0 {
		return
	}

	issues := make([]string, len(v.TopIssues))
	for i, issue := range v.TopIssues {
		issues[i] = string(issue)
	}
	fmt.Fprintf(w, "Top issues: %s\n", strings.Join(issues, ", "))

	fmt.Fprintln(w, "Recommendations:")
	for _, rec := range v.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
}
