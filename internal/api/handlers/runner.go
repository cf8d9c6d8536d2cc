package handlers

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dataset-eval/backend/internal/dataset"
	"github.com/dataset-eval/backend/internal/evaluation"
	"github.com/dataset-eval/backend/internal/inference"
	"github.com/dataset-eval/backend/internal/middleware/validation"
	"github.com/dataset-eval/backend/internal/storage/models"
	"github.com/dataset-eval/backend/pkg/logger"
)

type RunStore interface {
	InsertRun(run *models.EvaluationRun) error
	GetRun(id string) (*models.EvaluationRun, error)
	ListRuns(limit int) ([]*models.EvaluationRun, error)
}

// Runner evaluates uploaded datasets and records each run. It is shared by
// the HTTP and websocket handlers.
type Runner struct {
	evaluator *evaluation.Evaluator
	store     RunStore
	defaults  validation.EvaluationParams
	workers   int
}

func NewRunner(evaluator *evaluation.Evaluator, store RunStore, defaults validation.EvaluationParams, workers int) *Runner {
	return &Runner{
		evaluator: evaluator,
		store:     store,
		defaults:  defaults,
		workers:   workers,
	}
}

func (r *Runner) Defaults() validation.EvaluationParams {
	return r.defaults
}

func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset, params validation.EvaluationParams, source string, progress func(done, total int)) (*models.EvaluationRun, *evaluation.Result, error) {
	opts := evaluation.Options{
		QualityThreshold:    params.QualityThreshold,
		ComplianceThreshold: params.ComplianceThreshold,
		Relevance:           params.Relevance,
		PII:                 params.PII,
		Bias:                params.Bias,
		Workers:             r.workers,
		Progress:            progress,
	}

	result, err := r.evaluator.Evaluate(ctx, ds, opts)
	if err != nil {
		return nil, nil, err
	}

	var flagged bytes.Buffer
	if err := dataset.WriteCSV(&flagged, result.Dataset); err != nil {
		logger.Warn("Failed to render flagged dataset", zap.Error(err))
	}

	run := &models.EvaluationRun{
		ID:                  uuid.New().String(),
		Source:              source,
		TotalRecords:        result.Scores.Total,
		QualityIssues:       result.Scores.QualityIssues,
		PIIEntries:          result.Scores.PIIEntries,
		QualityScore:        result.Scores.QualityScore,
		ComplianceScore:     result.Scores.ComplianceScore,
		QualityThreshold:    params.QualityThreshold,
		ComplianceThreshold: params.ComplianceThreshold,
		Checks:              enabledChecks(params),
		FitForPurpose:       result.Verdict.FitForPurpose,
		TopIssues:           issueNames(result.Verdict.TopIssues),
		Report:              result.Report,
		FlaggedCSV:          flagged.String(),
		DurationMS:          int(result.Duration / time.Millisecond),
		CreatedAt:           time.Now(),
	}

	if err := r.store.InsertRun(run); err != nil {
		logger.Error("Failed to record evaluation run", zap.String("run_id", run.ID), zap.Error(err))
	}

	return run, result, nil
}

func enabledChecks(params validation.EvaluationParams) []string {
	checks := []string{}
	if params.Relevance {
		checks = append(checks, "relevance")
	}
	if params.PII {
		checks = append(checks, "pii")
	}
	if params.Bias {
		checks = append(checks, "bias")
	}
	return checks
}

func issueNames(issues []evaluation.IssueCategory) []string {
	names := make([]string, len(issues))
	for i, issue := range issues {
		names[i] = string(issue)
	}
	return names
}

func evaluationResponse(run *models.EvaluationRun, result *evaluation.Result) fiber.Map {
	return fiber.Map{
		"id":     run.ID,
		"source": run.Source,
		"scores": result.Scores,
		"verdict": fiber.Map{
			"fit_for_purpose": result.Verdict.FitForPurpose,
			"assessment":      result.Verdict.Assessment(),
			"top_issues":      result.Verdict.TopIssues,
			"recommendations": result.Verdict.Recommendations,
		},
		"report":      result.Report,
		"duration_ms": run.DurationMS,
	}
}

// statusFor maps an evaluation failure to an HTTP status.
func statusFor(err error) int {
	var malformed *dataset.MalformedInputError
	switch {
	case errors.As(err, &malformed),
		errors.Is(err, evaluation.ErrEmptyDataset),
		errors.Is(err, evaluation.ErrInvalidThreshold):
		return fiber.StatusBadRequest
	case errors.Is(err, evaluation.ErrChecksUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, inference.ErrAuthentication):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// clientMessage hides internal details of server-side failures.
func clientMessage(err error) string {
	if statusFor(err) == fiber.StatusInternalServerError {
		return "Failed to evaluate dataset"
	}
	if errors.Is(err, inference.ErrAuthentication) {
		return "Inference endpoint rejected the configured credentials"
	}
	return err.Error()
}
