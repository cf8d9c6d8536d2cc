package bootstrap

import (
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-eval/backend/internal/checks"
	"github.com/dataset-eval/backend/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Model:             "llama3.1-8b",
			BaseURL:           "http://127.0.0.1:1/v1",
			TimeoutSec:        5,
			BreakerFailures:   5,
			BreakerTimeoutSec: 30,
		},
		Checks: config.ChecksConfig{
			PII:         true,
			MaxAttempts: 3,
			CacheSize:   10,
			Workers:     1,
		},
	}
}

func TestCatalogWithoutAPIKeyIsNil(t *testing.T) {
	catalog, err := Catalog(testConfig(), nil)
	require.NoError(t, err)
	assert.Nil(t, catalog)
}

func TestCatalogWithAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = "test-key"

	catalog, err := Catalog(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, catalog)
	assert.IsType(t, &checks.Catalog{}, catalog)
}

func TestRedis(t *testing.T) {
	client, err := Redis(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = Redis(config.RedisConfig{
		Enabled: true,
		Host:    mr.Host(),
		Port:    mustPort(t, mr),
		TTL:     time.Hour,
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
