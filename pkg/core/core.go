package core

import (
	"context"

	"github.com/keyhound/keyhound/internal/config"
	"github.com/keyhound/keyhound/internal/engine"
	"github.com/keyhound/keyhound/internal/search"
	"github.com/keyhound/keyhound/internal/shards"
	"github.com/keyhound/keyhound/internal/types"
	"github.com/keyhound/keyhound/internal/verify"
)

// Re-export selected internal types as a stable public API surface.
type (
	DiscoverConfig  = engine.DiscoverConfig
	DiscoverResult  = engine.DiscoverResult
	ValidateConfig  = engine.ValidateConfig
	ValidateResult  = engine.ValidateResult
	CatalogConfig   = shards.Config
	Shard           = types.ShardDefinition
	Candidate       = types.Candidate
	Outcome         = types.ValidationOutcome
	Status          = types.Status
	Provider        = search.Provider
	Checker         = engine.Checker
	ProbeResponse   = verify.ProbeResponse
	ClassifyRule    = verify.Rule
	ShardStatistics = types.ShardStats
)

// DefaultDiscoverConfig returns the full default catalog with the default
// search pacing and a single worker.
func DefaultDiscoverConfig() DiscoverConfig {
	return DiscoverConfig{
		Catalog: shards.DefaultConfig(),
		Search:  search.DefaultConfig(),
		Workers: 1,
	}
}

// Catalog enumerates the shards for cfg.
func Catalog(cfg CatalogConfig) ([]Shard, error) { return shards.Catalog(cfg) }

// NewGitHubProvider builds the GitHub code-search provider.
func NewGitHubProvider(ctx context.Context, token string) (Provider, error) {
	p, err := search.NewGitHubProvider(ctx, config.Secret(token))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Discover runs every shard of cfg's catalog against provider. Logging is
// discarded; callers wanting logs should use the CLI.
func Discover(ctx context.Context, provider Provider, cfg DiscoverConfig) (DiscoverResult, error) {
	return engine.Discover(ctx, provider, cfg, nil)
}

// NewOpenAIChecker returns a classifier probing the public OpenAI API with
// default retry settings.
func NewOpenAIChecker() Checker {
	return verify.NewClassifier(verify.NewOpenAIProber(), verify.DefaultConfig(), nil)
}

// Validate classifies values one by one with default concurrency.
func Validate(ctx context.Context, c Checker, values []string) ValidateResult {
	return engine.Validate(ctx, c, values, ValidateConfig{}, nil)
}

// Classify maps a single service response to a status using the default
// rule table.
func Classify(resp ProbeResponse) (Status, types.ErrorSubtype) {
	return verify.Classify(resp, verify.DefaultRules())
}

// Values extracts the raw strings of candidates, in order.
func Values(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Value
	}
	return out
}
