package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestFixedRetriesRetryableErrorUntilExhausted(t *testing.T) {
	sleeper := &recordingSleeper{}
	cfg := Fixed(3, 2*time.Second, errTransient)
	cfg.Sleep = sleeper.sleep

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeper.waits)
}

func TestNonRetryableErrorStopsImmediately(t *testing.T) {
	sleeper := &recordingSleeper{}
	cfg := Fixed(3, time.Second, errTransient)
	cfg.Sleep = sleeper.sleep

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errFatal
	})

	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sleeper.waits)
}

func TestSucceedsAfterRetry(t *testing.T) {
	cfg := Fixed(3, 0, errTransient)

	attempts := 0
	got, err := DoWithResult(context.Background(), cfg, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errTransient
		}
		return "relevant", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "relevant", got)
	assert.Equal(t, 2, attempts)
}

func TestExponentialDelayIsCapped(t *testing.T) {
	sleeper := &recordingSleeper{}
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   2,
		Sleep:        sleeper.sleep,
	}

	_ = Do(context.Background(), cfg, func() error { return errTransient })

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeper.waits)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, Fixed(3, 0), func() error {
		attempts++
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts)
}
