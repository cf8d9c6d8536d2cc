package evaluation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dataset-eval/backend/internal/dataset"
	"github.com/dataset-eval/backend/internal/metrics"
	"github.com/dataset-eval/backend/internal/report"
	"github.com/dataset-eval/backend/pkg/logger"
)

type Evaluator struct {
	catalog Classifiers
}

type Result struct {
	Dataset  *dataset.Dataset
	Scores   Scores
	Verdict  Verdict
	Report   string
	Duration time.Duration
}

// NewEvaluator accepts a nil catalog; runs that enable an inference check
// then fail with ErrChecksUnavailable.
func NewEvaluator(catalog Classifiers) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Evaluate flags, scores and judges ds, adding the flag columns to it.
func (e *Evaluator) Evaluate(ctx context.Context, ds *dataset.Dataset, opts Options) (*Result, error) {
	startTime := time.Now()

	if ds == nil {
		metrics.EvaluationTotal.WithLabelValues("error").Inc()
		return nil, ErrNilDataset
	}

	logger.Info("Running dataset evaluation",
		zap.Int("records", ds.Len()),
		zap.Bool("relevance", opts.Relevance),
		zap.Bool("pii", opts.PII),
		zap.Bool("bias", opts.Bias),
		zap.Int("workers", opts.Workers),
	)

	result, err := e.run(ctx, ds, opts)
	if err != nil {
		metrics.EvaluationTotal.WithLabelValues("error").Inc()
		logger.Error("Dataset evaluation failed", zap.Error(err))
		return nil, err
	}
	result.Duration = time.Since(startTime)

	metrics.EvaluationTotal.WithLabelValues("success").Inc()
	metrics.EvaluationDuration.WithLabelValues(verdictLabel(result.Verdict)).Observe(result.Duration.Seconds())

	logger.Info("Dataset evaluation completed",
		zap.Int("total", result.Scores.Total),
		zap.Int("quality_issues", result.Scores.QualityIssues),
		zap.Int("pii_entries", result.Scores.PIIEntries),
		zap.Float64("quality_score", result.Scores.QualityScore),
		zap.Float64("compliance_score", result.Scores.ComplianceScore),
		zap.Bool("fit_for_purpose", result.Verdict.FitForPurpose),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

func (e *Evaluator) run(ctx context.Context, ds *dataset.Dataset, opts Options) (*Result, error) {
	run, err := NewRun(e.catalog, opts)
	if err != nil {
		return nil, err
	}
	if err := run.Load(ds); err != nil {
		return nil, err
	}
	if err := run.Flag(ctx); err != nil {
		return nil, err
	}
	scores, err := run.Score()
	if err != nil {
		return nil, err
	}
	verdict, err := run.Decide()
	if err != nil {
		return nil, err
	}

	return &Result{
		Dataset: ds,
		Scores:  scores,
		Verdict: verdict,
		Report:  report.Generate(ds, scores.Summary()),
	}, nil
}

func verdictLabel(v Verdict) string {
	if v.FitForPurpose {
		return "fit"
	}
	return "not_fit"
}
