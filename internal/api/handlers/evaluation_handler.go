package handlers

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dataset-eval/backend/internal/dataset"
	"github.com/dataset-eval/backend/internal/middleware/validation"
	"github.com/dataset-eval/backend/internal/storage/sqlite"
	"github.com/dataset-eval/backend/pkg/logger"
)

type EvaluationHandler struct {
	runner *Runner
	store  RunStore
}

func NewEvaluationHandler(runner *Runner, store RunStore) *EvaluationHandler {
	return &EvaluationHandler{
		runner: runner,
		store:  store,
	}
}

// CreateEvaluation evaluates a CSV sent either as the raw body or as the
// multipart field "file".
func (h *EvaluationHandler) CreateEvaluation(c *fiber.Ctx) error {
	params, ok := validation.Params(c)
	if !ok {
		var err error
		params, err = validation.ParseParams(c.Query, h.runner.Defaults())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	body, source, err := readUpload(c)
	if err != nil {
		logger.Error("Failed to read uploaded dataset", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid upload",
		})
	}

	ds, err := dataset.ReadCSV(body)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": clientMessage(err)})
	}

	run, result, err := h.runner.Run(c.UserContext(), ds, params, source, nil)
	if err != nil {
		logger.Error("Failed to evaluate dataset", zap.String("source", source), zap.Error(err))
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": clientMessage(err)})
	}

	return c.Status(fiber.StatusCreated).JSON(evaluationResponse(run, result))
}

func readUpload(c *fiber.Ctx) (io.Reader, string, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), validation.SanitizeSource(fh.Filename), nil
	}

	source := validation.SanitizeSource(c.Get("X-Dataset-Name"))
	return bytes.NewReader(c.Body()), source, nil
}

func (h *EvaluationHandler) ListEvaluations(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		logger.Error("Failed to list evaluation runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list evaluations",
		})
	}

	return c.JSON(fiber.Map{
		"evaluations": runs,
	})
}

func (h *EvaluationHandler) GetReport(c *fiber.Ctx) error {
	run, err := h.store.GetRun(c.Params("id"))
	if err != nil {
		return h.lookupFailed(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(run.Report)
}

func (h *EvaluationHandler) GetFlaggedDataset(c *fiber.Ctx) error {
	run, err := h.store.GetRun(c.Params("id"))
	if err != nil {
		return h.lookupFailed(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="evaluated_`+run.ID+`.csv"`)
	return c.SendString(run.FlaggedCSV)
}

func (h *EvaluationHandler) lookupFailed(c *fiber.Ctx, err error) error {
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Evaluation not found",
		})
	}
	logger.Error("Failed to load evaluation run", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to load evaluation",
	})
}
