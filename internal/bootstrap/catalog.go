// Package bootstrap assembles the runtime dependencies shared by the API
// server and the command-line evaluator.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dataset-eval/backend/internal/cache/redis"
	"github.com/dataset-eval/backend/internal/checks"
	"github.com/dataset-eval/backend/internal/classifier"
	"github.com/dataset-eval/backend/internal/evaluation"
	"github.com/dataset-eval/backend/internal/inference"
	"github.com/dataset-eval/backend/pkg/config"
	"github.com/dataset-eval/backend/pkg/logger"
)

// Catalog builds the inference-backed checks. It returns a nil Classifiers
// when no API key is configured; evaluations that enable an inference check
// then fail with evaluation.ErrChecksUnavailable.
func Catalog(cfg *config.Config, store classifier.Store) (evaluation.Classifiers, error) {
	if cfg.LLM.APIKey == "" {
		if cfg.Checks.InferenceEnabled() {
			logger.Warn("No inference API key configured, inference checks are disabled")
		}
		return nil, nil
	}

	client, err := inference.NewClient(inference.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Timeout:         time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		BreakerFailures: cfg.LLM.BreakerFailures,
		BreakerTimeout:  time.Duration(cfg.LLM.BreakerTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	catalogCfg := checks.DefaultCatalogConfig()
	catalogCfg.MaxAttempts = cfg.Checks.MaxAttempts
	catalogCfg.RelevanceRetryDelay = cfg.Checks.RelevanceRetryDelay
	catalogCfg.PIIRetryDelay = cfg.Checks.PIIRetryDelay
	catalogCfg.BiasRetryDelay = cfg.Checks.BiasRetryDelay
	catalogCfg.RelevancePacing = cfg.Checks.RelevancePacing
	catalogCfg.CacheSize = cfg.Checks.CacheSize
	catalogCfg.Store = store

	catalog, err := checks.NewCatalog(client, catalogCfg)
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// Redis connects the shared verdict cache when it is enabled. A nil client
// with a nil error means redis is disabled.
func Redis(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return redis.NewClient(
		fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		cfg.Password,
		cfg.DB,
		cfg.TTL,
	)
}
