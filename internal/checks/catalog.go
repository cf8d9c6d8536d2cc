// Package checks holds the per-record checks applied to a dataset: regex
// pattern matchers and the inference-backed classifiers built on top of the
// resilient classifier.
package checks

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dataset-eval/backend/internal/classifier"
	"github.com/dataset-eval/backend/pkg/retry"
)

const (
	relevanceSystemPrompt = "You are a classifier for customer support messages. " +
		"Classify a customer message as 'relevant' if it includes inquiries about orders, complaints, product questions, cancellations, or account support. " +
		"If the message is unrelated to customer support, random, or contains sensitive information without a request for support, classify it as 'irrelevant'."

	piiSystemPrompt = "You are a compliance officer. Analyze the following message to determine if it contains personally identifiable information (PII), " +
		"such as an email address, Social Security number (SSN), or phone number. " +
		"Respond with 'contains pii' if any PII is found, otherwise respond with 'no pii'."

	biasSystemPrompt = "You are a bias detection assistant. Analyze the following message for biased or stereotypical language, " +
		"such as terms that might reflect gender, racial, or personality-based stereotypes. " +
		"If you detect any biased language, respond with 'contains bias', otherwise respond with 'no bias'."

	genderSystemPrompt = "You are a demographic analysis assistant. Analyze the following name and determine if it has a gender association. " +
		"If the name is commonly associated with a male gender, respond with 'male'; if with a female gender, respond with 'female'. " +
		"If the name is gender-neutral or unrecognized, respond with 'unknown'."

	relevanceMaxTokens = 50
	verdictMaxTokens   = 20
	temperature        = 0.2
)

var (
	maleWord   = regexp.MustCompile(`\bmale\b`)
	femaleWord = regexp.MustCompile(`\bfemale\b`)
)

// Completer sends one system + user prompt and returns the normalized reply.
type Completer interface {
	Classify(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// Relevance is the outcome of the relevance check. The zero value means the
// check could not reach a decision.
type Relevance int

const (
	RelevanceUndetermined Relevance = iota
	Relevant
	Irrelevant
)

func (r Relevance) String() string {
	switch r {
	case Relevant:
		return "relevant"
	case Irrelevant:
		return "irrelevant"
	default:
		return "undetermined"
	}
}

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

type CatalogConfig struct {
	MaxAttempts         int
	RelevanceRetryDelay time.Duration
	PIIRetryDelay       time.Duration
	BiasRetryDelay      time.Duration
	// RelevancePacing is waited before every uncached relevance call to stay
	// under the endpoint's rate limit.
	RelevancePacing time.Duration
	CacheSize       int
	Store           classifier.Store
	Sleep           retry.SleepFunc
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		MaxAttempts:         classifier.DefaultMaxAttempts,
		RelevanceRetryDelay: 2 * time.Second,
		PIIRetryDelay:       5 * time.Second,
		BiasRetryDelay:      2 * time.Second,
		CacheSize:           classifier.DefaultCacheSize,
	}
}

// Catalog is the set of inference-backed classifiers. Each one owns its own
// bounded cache.
type Catalog struct {
	client Completer
	pacing time.Duration
	sleep  retry.SleepFunc

	relevance *classifier.Resilient[Relevance]
	pii       *classifier.Resilient[bool]
	bias      *classifier.Resilient[bool]
	gender    *classifier.Resilient[Gender]
}

func NewCatalog(client Completer, cfg CatalogConfig) (*Catalog, error) {
	if client == nil {
		return nil, errors.New("checks: nil inference client")
	}

	c := &Catalog{
		client: client,
		pacing: cfg.RelevancePacing,
		sleep:  cfg.Sleep,
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}

	var err error
	c.relevance, err = classifier.New("relevance", c.classifyRelevance, classifier.Options[Relevance]{
		CacheSize:   cfg.CacheSize,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RelevanceRetryDelay,
		Fallback:    RelevanceUndetermined,
		Store:       cfg.Store,
		Sleep:       cfg.Sleep,
	})
	if err != nil {
		return nil, err
	}

	c.pii, err = classifier.New("pii", c.replyContains(piiSystemPrompt, "contains pii"), classifier.Options[bool]{
		CacheSize:   cfg.CacheSize,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.PIIRetryDelay,
		Store:       cfg.Store,
		Sleep:       cfg.Sleep,
	})
	if err != nil {
		return nil, err
	}

	c.bias, err = classifier.New("bias", c.replyContains(biasSystemPrompt, "contains bias"), classifier.Options[bool]{
		CacheSize:   cfg.CacheSize,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.BiasRetryDelay,
		Store:       cfg.Store,
		Sleep:       cfg.Sleep,
	})
	if err != nil {
		return nil, err
	}

	c.gender, err = classifier.New("gender", c.classifyGender, classifier.Options[Gender]{
		CacheSize:   cfg.CacheSize,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.BiasRetryDelay,
		Fallback:    GenderUnknown,
		Store:       cfg.Store,
		Sleep:       cfg.Sleep,
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Relevance classifies a customer message. Messages carrying sensitive or
// irrelevance markers are irrelevant without consulting the model.
func (c *Catalog) Relevance(ctx context.Context, message string) (Relevance, error) {
	if ContainsAny(message, SensitiveMarkers) || ContainsAny(message, IrrelevantMarkers) {
		return Irrelevant, nil
	}
	return c.relevance.Classify(ctx, message)
}

func (c *Catalog) ContainsPII(ctx context.Context, message string) (bool, error) {
	return c.pii.Classify(ctx, message)
}

func (c *Catalog) ContainsBias(ctx context.Context, message string) (bool, error) {
	return c.bias.Classify(ctx, message)
}

func (c *Catalog) Gender(ctx context.Context, name string) (Gender, error) {
	return c.gender.Classify(ctx, name)
}

// Calls reports underlying inference invocations per check, retries included.
func (c *Catalog) Calls() map[string]int64 {
	return map[string]int64{
		c.relevance.Name(): c.relevance.Calls(),
		c.pii.Name():       c.pii.Calls(),
		c.bias.Name():      c.bias.Calls(),
		c.gender.Name():    c.gender.Calls(),
	}
}

func (c *Catalog) classifyRelevance(ctx context.Context, message string) (Relevance, error) {
	if c.pacing > 0 {
		if err := c.sleep(ctx, c.pacing); err != nil {
			return RelevanceUndetermined, err
		}
	}

	reply, err := c.client.Classify(ctx, relevanceSystemPrompt, message, relevanceMaxTokens, temperature)
	if err != nil {
		return RelevanceUndetermined, err
	}
	if strings.Contains(reply, "relevant") && !strings.Contains(reply, "irrelevant") {
		return Relevant, nil
	}
	return Irrelevant, nil
}

func (c *Catalog) replyContains(system, marker string) classifier.Func[bool] {
	return func(ctx context.Context, input string) (bool, error) {
		reply, err := c.client.Classify(ctx, system, input, verdictMaxTokens, temperature)
		if err != nil {
			return false, err
		}
		return strings.Contains(reply, marker), nil
	}
}

func (c *Catalog) classifyGender(ctx context.Context, name string) (Gender, error) {
	reply, err := c.client.Classify(ctx, genderSystemPrompt, name, verdictMaxTokens, temperature)
	if err != nil {
		return GenderUnknown, err
	}
	return parseGender(reply), nil
}

// parseGender matches whole words so that "female" is not read as "male".
func parseGender(reply string) Gender {
	reply = strings.ToLower(reply)
	switch {
	case maleWord.MatchString(reply):
		return GenderMale
	case femaleWord.MatchString(reply):
		return GenderFemale
	default:
		return GenderUnknown
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
