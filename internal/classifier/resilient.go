// Package classifier wraps single-input inference classifications with a
// bounded memo cache, per-key call coalescing, retry on transient faults and
// a fallback value when every attempt fails.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dataset-eval/backend/internal/inference"
	"github.com/dataset-eval/backend/internal/metrics"
	"github.com/dataset-eval/backend/pkg/logger"
	"github.com/dataset-eval/backend/pkg/retry"
	"github.com/dataset-eval/backend/pkg/utils"
)

const (
	DefaultCacheSize   = 1000
	DefaultMaxAttempts = 3
)

// Func classifies one raw input. It must be deterministic in its input.
type Func[T any] func(ctx context.Context, input string) (T, error)

// Store is an optional second-level cache shared between processes.
type Store interface {
	Lookup(ctx context.Context, key string, dst any) (bool, error)
	Save(ctx context.Context, key string, value any) error
}

type Options[T any] struct {
	CacheSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	// Fallback is returned when the classification cannot be obtained.
	Fallback T
	Store    Store
	Sleep    retry.SleepFunc
	Logger   *zap.Logger
}

// Resilient is safe for concurrent use. Concurrent calls for the same input
// share a single underlying invocation.
type Resilient[T any] struct {
	name     string
	fn       Func[T]
	cache    *lru.Cache[string, T]
	group    singleflight.Group
	retry    retry.Config
	fallback T
	store    Store
	logger   *zap.Logger
	calls    atomic.Int64
}

func New[T any](name string, fn Func[T], opts Options[T]) (*Resilient[T], error) {
	if fn == nil {
		return nil, fmt.Errorf("classifier %s: nil classification func", name)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("classifier")
	}

	cache, err := lru.New[string, T](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("classifier %s: failed to create cache: %w", name, err)
	}

	log := opts.Logger.With(zap.String("check", name))

	retryConfig := retry.Fixed(opts.MaxAttempts, opts.RetryDelay, inference.ErrServiceUnavailable)
	retryConfig.Sleep = opts.Sleep
	retryConfig.Logger = log

	return &Resilient[T]{
		name:     name,
		fn:       fn,
		cache:    cache,
		retry:    retryConfig,
		fallback: opts.Fallback,
		store:    opts.Store,
		logger:   log,
	}, nil
}

func (r *Resilient[T]) Name() string {
	return r.name
}

// Calls reports how many times the underlying func has been invoked,
// counting every retry attempt.
func (r *Resilient[T]) Calls() int64 {
	return r.calls.Load()
}

// Len reports the number of memoized inputs.
func (r *Resilient[T]) Len() int {
	return r.cache.Len()
}

// Classify returns the classification for input. The only errors it returns
// are inference.ErrAuthentication and cancellation of ctx; every other
// failure is logged and replaced by the fallback value.
//
// The shared call runs detached from any single caller's cancellation, so
// one caller giving up never fails the others waiting on the same input.
func (r *Resilient[T]) Classify(ctx context.Context, input string) (T, error) {
	if v, ok := r.cache.Get(input); ok {
		metrics.CacheHits.WithLabelValues(r.name, "memory").Inc()
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues(r.name).Inc()

	if err := ctx.Err(); err != nil {
		return r.fallback, err
	}

	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(input, func() (interface{}, error) {
		if v, ok := r.cache.Get(input); ok {
			return v, nil
		}
		return r.resolve(shared, input)
	})

	select {
	case <-ctx.Done():
		return r.fallback, ctx.Err()
	case res := <-ch:
		if err := ctx.Err(); err != nil {
			return r.fallback, err
		}
		if res.Err != nil {
			return r.fallback, res.Err
		}
		return res.Val.(T), nil
	}
}

func (r *Resilient[T]) resolve(ctx context.Context, input string) (T, error) {
	key := utils.CacheKey(input, "verdict", r.name)

	if r.store != nil {
		var stored T
		found, err := r.store.Lookup(ctx, key, &stored)
		if err != nil {
			r.logger.Warn("Verdict store lookup failed", zap.Error(err))
		} else if found {
			metrics.CacheHits.WithLabelValues(r.name, "store").Inc()
			r.cache.Add(input, stored)
			return stored, nil
		}
	}

	v, err := retry.DoWithResult(ctx, r.retry, func() (T, error) {
		r.calls.Add(1)
		metrics.ClassifierAttempts.WithLabelValues(r.name).Inc()
		return r.fn(ctx, input)
	})

	switch {
	case err == nil:
		r.cache.Add(input, v)
		if r.store != nil {
			if err := r.store.Save(ctx, key, v); err != nil {
				r.logger.Warn("Verdict store save failed", zap.Error(err))
			}
		}
		return v, nil

	case errors.Is(err, inference.ErrAuthentication):
		r.logger.Error("Inference credentials rejected", zap.Error(err))
		return r.fallback, err

	default:
		reason := "transport"
		if errors.Is(err, inference.ErrServiceUnavailable) {
			reason = "exhausted"
		}
		metrics.ClassifierFallbacks.WithLabelValues(r.name, reason).Inc()
		r.logger.Error("Classification failed, returning fallback",
			zap.String("input", input),
			zap.String("reason", reason),
			zap.Int("max_attempts", r.retry.MaxAttempts),
			zap.Error(err),
		)
		return r.fallback, nil
	}
}
