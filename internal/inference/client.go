package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dataset-eval/backend/internal/metrics"
	"github.com/dataset-eval/backend/pkg/circuitbreaker"
	"github.com/dataset-eval/backend/pkg/logger"
)

var (
	// ErrAuthentication means the endpoint rejected the credentials. Fatal.
	ErrAuthentication = errors.New("inference: authentication failed")
	// ErrServiceUnavailable is a transient server-side fault worth retrying.
	ErrServiceUnavailable = errors.New("inference: service unavailable")
	// ErrTransport covers every other failure to obtain a reply.
	ErrTransport = errors.New("inference: transport error")
)

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client
}

// Client sends single chat-completion requests and normalizes the reply.
// It neither caches nor retries.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	cb      *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is not configured", ErrAuthentication)
	}
	if cfg.Model == "" {
		return nil, errors.New("inference: model is not configured")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	cb := circuitbreaker.NewCircuitBreaker("inference", circuitbreaker.Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          cfg.BreakerTimeout,
		FailureThreshold: cfg.BreakerFailures,
		SuccessThreshold: 1,
		IsFailure: func(err error) bool {
			return errors.Is(err, ErrServiceUnavailable)
		},
		OnStateChange: func(name string, _ circuitbreaker.State, to circuitbreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
		Logger: logger.GetLogger(),
	})

	logger.Info("Inference client initialized",
		zap.String("model", cfg.Model),
		zap.String("base_url", clientConfig.BaseURL),
	)

	return &Client{
		api:     openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		cb:      cb,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Classify sends exactly one request made of the system instruction and the
// user content and returns the lowercased, trimmed reply text.
func (c *Client) Classify(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	var content string

	err := c.cb.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
		metrics.InferenceDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			return classifyError(ctx, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: completion returned no choices", ErrTransport)
		}

		metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

		logger.Debug("Inference completion received",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		content = strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
		return nil
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}

	metrics.InferenceRequests.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		return "", err
	}
	return content, nil
}

// classifyError maps a go-openai failure onto the inference error taxonomy.
// The per-call timeout counts as a transient fault; cancellation of the
// caller's context does not.
func classifyError(parent context.Context, err error) error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
		status int
	)
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	case parent.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAuthentication):
		return "authentication_error"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	default:
		return "transport_error"
	}
}
