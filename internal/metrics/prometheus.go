package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_eval_evaluation_duration_seconds",
			Help:    "Dataset evaluation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"verdict"},
	)

	EvaluationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_eval_evaluations_total",
			Help: "Total number of dataset evaluations",
		},
		[]string{"status"},
	)

	RecordsEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_eval_records_evaluated_total",
			Help: "Total records passed through the flagging stage",
		},
	)

	FlaggedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_eval_flagged_records_total",
			Help: "Records flagged true, by flag column",
		},
		[]string{"flag"},
	)

	Scores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_eval_score",
			Help:    "Quality and compliance scores per evaluation",
			Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1.0},
		},
		[]string{"score"},
	)

	InferenceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_eval_inference_requests_total",
			Help: "Inference requests by outcome",
		},
		[]string{"outcome"},
	)

	InferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dataset_eval_inference_duration_seconds",
			Help:    "Inference request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_eval_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_eval_cache_hits_total",
			Help: "Classifier cache hits",
		},
		[]string{"check", "cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_eval_cache_misses_total",
			Help: "Classifier cache misses",
		},
		[]string{"check"},
	)

	ClassifierAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_eval_classifier_attempts_total",
			Help: "Underlying classifier invocations including retries",
		},
		[]string{"check"},
	)

	ClassifierFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_eval_classifier_fallbacks_total",
			Help: "Classifications that degraded to the fallback value",
		},
		[]string{"check", "reason"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_eval_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(EvaluationDuration)
		prometheus.MustRegister(EvaluationTotal)
		prometheus.MustRegister(RecordsEvaluated)
		prometheus.MustRegister(FlaggedRecords)
		prometheus.MustRegister(Scores)
		prometheus.MustRegister(InferenceRequests)
		prometheus.MustRegister(InferenceDuration)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(ClassifierAttempts)
		prometheus.MustRegister(ClassifierFallbacks)
		prometheus.MustRegister(BreakerState)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
