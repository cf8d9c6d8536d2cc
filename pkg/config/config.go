package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	LLM     LLMConfig
	Checks  ChecksConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        int
	WriteTimeout       int
	BodyLimit          int
	RateLimitPerMinute int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	TimeoutSec        int
	BreakerFailures   uint32
	BreakerTimeoutSec int
}

// ChecksConfig controls which optional checks run and how the
// inference-backed classifiers behave.
type ChecksConfig struct {
	QualityThreshold    float64
	ComplianceThreshold float64

	Relevance bool
	PII       bool
	Bias      bool

	MaxAttempts         int
	RelevanceRetryDelay time.Duration
	PIIRetryDelay       time.Duration
	BiasRetryDelay      time.Duration
	RelevancePacing     time.Duration
	CacheSize           int
	Workers             int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads config.yaml from the standard search paths, or from the
// explicit file when one is given, then applies DATASET_EVAL_* overrides.
func Load(file ...string) (*Config, error) {
	v := viper.New()

	if len(file) > 0 && file[0] != "" {
		v.SetConfigFile(file[0])
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dataset-eval")
	}

	v.SetEnvPrefix("DATASET_EVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("llm.apiKey", "DATASET_EVAL_LLM_APIKEY", "CEREBRAS_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Checks.QualityThreshold < 0 || c.Checks.QualityThreshold > 1 {
		return fmt.Errorf("checks.qualityThreshold must be within [0,1], got %v", c.Checks.QualityThreshold)
	}
	if c.Checks.ComplianceThreshold < 0 || c.Checks.ComplianceThreshold > 1 {
		return fmt.Errorf("checks.complianceThreshold must be within [0,1], got %v", c.Checks.ComplianceThreshold)
	}
	if c.Checks.MaxAttempts < 1 {
		return fmt.Errorf("checks.maxAttempts must be at least 1, got %d", c.Checks.MaxAttempts)
	}
	if c.Checks.CacheSize < 1 {
		return fmt.Errorf("checks.cacheSize must be at least 1, got %d", c.Checks.CacheSize)
	}
	if c.Checks.Workers < 1 {
		return fmt.Errorf("checks.workers must be at least 1, got %d", c.Checks.Workers)
	}
	return nil
}

// InferenceEnabled reports whether any enabled check needs the remote model.
func (c ChecksConfig) InferenceEnabled() bool {
	return c.Relevance || c.PII || c.Bias
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 300)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.rateLimitPerMinute", 30)

	v.SetDefault("sqlite.path", "./data/evaluations.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("llm.baseURL", "https://api.cerebras.ai/v1")
	v.SetDefault("llm.model", "llama3.1-8b")
	v.SetDefault("llm.timeoutSec", 30)
	v.SetDefault("llm.breakerFailures", 5)
	v.SetDefault("llm.breakerTimeoutSec", 30)

	v.SetDefault("checks.qualityThreshold", 0.9)
	v.SetDefault("checks.complianceThreshold", 0.95)
	v.SetDefault("checks.relevance", false)
	v.SetDefault("checks.pii", false)
	v.SetDefault("checks.bias", false)
	v.SetDefault("checks.maxAttempts", 3)
	v.SetDefault("checks.relevanceRetryDelay", 2*time.Second)
	v.SetDefault("checks.piiRetryDelay", 5*time.Second)
	v.SetDefault("checks.biasRetryDelay", 2*time.Second)
	v.SetDefault("checks.relevancePacing", time.Duration(0))
	v.SetDefault("checks.cacheSize", 1000)
	v.SetDefault("checks.workers", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
