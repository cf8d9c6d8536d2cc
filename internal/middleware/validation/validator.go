package validation

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const paramsKey = "evaluation_params"

// EvaluationParams are the per-request evaluation settings taken from the
// query string.
type EvaluationParams struct {
	QualityThreshold    float64
	ComplianceThreshold float64
	Relevance           bool
	PII                 bool
	Bias                bool
}

type Config struct {
	Defaults            EvaluationParams
	MaxUploadSize       int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware checks evaluation uploads before they reach the handler and
// stores the parsed parameters in the request locals.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"text/csv", "multipart/form-data", "application/octet-stream", "text/plain"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if !allowedContentType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if len(c.Body()) > cfg.MaxUploadSize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Dataset exceeds maximum upload size",
			})
		}

		params, err := ParseParams(c.Query, cfg.Defaults)
		if err != nil {
			cfg.Logger.Warn("Invalid evaluation parameters",
				zap.String("ip", c.IP()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals(paramsKey, params)
		return c.Next()
	}
}

// Params returns the parameters stored by Middleware.
func Params(c *fiber.Ctx) (EvaluationParams, bool) {
	params, ok := c.Locals(paramsKey).(EvaluationParams)
	return params, ok
}

// ParseParams reads thresholds and check toggles, keeping defaults for
// absent keys.
func ParseParams(query func(key string, defaultValue ...string) string, defaults EvaluationParams) (EvaluationParams, error) {
	params := defaults

	var err error
	if params.QualityThreshold, err = parseThreshold(query("quality_threshold"), defaults.QualityThreshold); err != nil {
		return params, fmt.Errorf("quality_threshold: %w", err)
	}
	if params.ComplianceThreshold, err = parseThreshold(query("compliance_threshold"), defaults.ComplianceThreshold); err != nil {
		return params, fmt.Errorf("compliance_threshold: %w", err)
	}
	if params.Relevance, err = parseToggle(query("relevance"), defaults.Relevance); err != nil {
		return params, fmt.Errorf("relevance: %w", err)
	}
	if params.PII, err = parseToggle(query("pii"), defaults.PII); err != nil {
		return params, fmt.Errorf("pii: %w", err)
	}
	if params.Bias, err = parseToggle(query("bias"), defaults.Bias); err != nil {
		return params, fmt.Errorf("bias: %w", err)
	}

	return params, nil
}

func parseThreshold(raw string, fallback float64) (float64, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%v must be within [0,1]", v)
	}
	return v, nil
}

func parseToggle(raw string, fallback bool) (bool, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%q is not a boolean", raw)
	}
	return v, nil
}

func allowedContentType(contentType string, allowed []string) bool {
	if contentType == "" {
		return true
	}
	for _, allowedType := range allowed {
		if strings.Contains(contentType, allowedType) {
			return true
		}
	}
	return false
}

// SanitizeSource reduces an uploaded file name to a safe label.
func SanitizeSource(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
