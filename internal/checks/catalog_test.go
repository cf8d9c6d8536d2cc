package checks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-eval/backend/internal/inference"
)

type call struct {
	system    string
	user      string
	maxTokens int
}

type fakeCompleter struct {
	mu    sync.Mutex
	reply func(system, user string) (string, error)
	calls []call
}

func (f *fakeCompleter) Classify(_ context.Context, system, user string, maxTokens int, _ float32) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{system: system, user: user, maxTokens: maxTokens})
	f.mu.Unlock()
	return f.reply(system, user)
}

func (f *fakeCompleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func constant(reply string) func(string, string) (string, error) {
	return func(string, string) (string, error) { return reply, nil }
}

func newCatalog(t *testing.T, f *fakeCompleter) *Catalog {
	t.Helper()
	cfg := DefaultCatalogConfig()
	cfg.Sleep = func(context.Context, time.Duration) error { return nil }
	c, err := NewCatalog(f, cfg)
	require.NoError(t, err)
	return c
}

func TestRelevanceParsesReply(t *testing.T) {
	tests := []struct {
		reply string
		want  Relevance
	}{
		{"relevant", Relevant},
		{"this message is relevant.", Relevant},
		{"irrelevant", Irrelevant},
		{"not sure", Irrelevant},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			c := newCatalog(t, &fakeCompleter{reply: constant(tt.reply)})
			got, err := c.Relevance(context.Background(), "Where is my order?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelevanceMarkersOverrideModel(t *testing.T) {
	f := &fakeCompleter{reply: constant("relevant")}
	c := newCatalog(t, f)

	for _, msg := range []string{
		"Please update my EMAIL address",
		"my social security number is wrong",
		"just a random thought",
		"placeholder text",
	} {
		got, err := c.Relevance(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, Irrelevant, got, msg)
	}
	assert.Zero(t, f.count())
}

func TestRelevanceUsesLargerTokenBudget(t *testing.T) {
	f := &fakeCompleter{reply: constant("relevant")}
	c := newCatalog(t, f)

	_, err := c.Relevance(context.Background(), "I want to cancel")
	require.NoError(t, err)
	_, err = c.ContainsPII(context.Background(), "I want to cancel")
	require.NoError(t, err)

	require.Equal(t, 2, f.count())
	assert.Equal(t, relevanceMaxTokens, f.calls[0].maxTokens)
	assert.Equal(t, relevanceSystemPrompt, f.calls[0].system)
	assert.Equal(t, verdictMaxTokens, f.calls[1].maxTokens)
	assert.Equal(t, piiSystemPrompt, f.calls[1].system)
}

func TestRelevanceFallbackIsUndetermined(t *testing.T) {
	f := &fakeCompleter{reply: func(string, string) (string, error) {
		return "", fmt.Errorf("boom: %w", inference.ErrServiceUnavailable)
	}}
	c := newCatalog(t, f)

	got, err := c.Relevance(context.Background(), "Where is my order?")
	require.NoError(t, err)
	assert.Equal(t, RelevanceUndetermined, got)
	assert.Equal(t, 3, f.count())
	assert.Equal(t, int64(3), c.Calls()["relevance"])
}

func TestRelevancePacing(t *testing.T) {
	var waits []time.Duration
	cfg := DefaultCatalogConfig()
	cfg.RelevancePacing = 200 * time.Millisecond
	cfg.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	c, err := NewCatalog(&fakeCompleter{reply: constant("relevant")}, cfg)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Relevance(ctx, "order status")
	require.NoError(t, err)
	_, err = c.Relevance(ctx, "order status")
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{200 * time.Millisecond}, waits)
}

func TestContainsPII(t *testing.T) {
	c := newCatalog(t, &fakeCompleter{reply: func(_, user string) (string, error) {
		if user == "call me at 555-1234" {
			return "contains pii", nil
		}
		return "no pii", nil
	}})

	got, err := c.ContainsPII(context.Background(), "call me at 555-1234")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = c.ContainsPII(context.Background(), "my order is late")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestContainsBias(t *testing.T) {
	c := newCatalog(t, &fakeCompleter{reply: constant("contains bias")})

	got, err := c.ContainsBias(context.Background(), "Women are bad at math")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestGender(t *testing.T) {
	tests := []struct {
		reply string
		want  Gender
	}{
		{"this name is typically female.", GenderFemale},
		{"male", GenderMale},
		{"female", GenderFemale},
		{"unknown", GenderUnknown},
		{"gender-neutral", GenderUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			c := newCatalog(t, &fakeCompleter{reply: constant(tt.reply)})
			got, err := c.Gender(context.Background(), "Sam")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGenderIgnoresCase(t *testing.T) {
	assert.Equal(t, GenderFemale, parseGender("This name is typically Female."))
	assert.Equal(t, GenderMale, parseGender("MALE"))
}

func TestGenderAuthenticationErrorPropagates(t *testing.T) {
	f := &fakeCompleter{reply: func(string, string) (string, error) {
		return "", fmt.Errorf("401: %w", inference.ErrAuthentication)
	}}
	c := newCatalog(t, f)

	got, err := c.Gender(context.Background(), "Alex")
	require.ErrorIs(t, err, inference.ErrAuthentication)
	assert.Equal(t, GenderUnknown, got)
	assert.Equal(t, 1, f.count())
}

func TestNewCatalogRequiresClient(t *testing.T) {
	_, err := NewCatalog(nil, DefaultCatalogConfig())
	assert.Error(t, err)
}

func TestRelevanceString(t *testing.T) {
	assert.Equal(t, "relevant", Relevant.String())
	assert.Equal(t, "irrelevant", Irrelevant.String())
	assert.Equal(t, "undetermined", RelevanceUndetermined.String())
}
