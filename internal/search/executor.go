package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/keyhound/keyhound/internal/logging"
	"github.com/keyhound/keyhound/internal/types"
)

// Config bounds how far a shard is walked and how failures are retried.
type Config struct {
	PerPage    int
	MaxPages   int
	Delay      time.Duration // between pages of one shard
	MaxRetries int           // per page
	Backoff    Backoff
	// ProviderCap overrides the provider's per-query result cap (tests).
	ProviderCap int
}

// DefaultConfig mirrors the defaults of the search command.
func DefaultConfig() Config {
	return Config{
		PerPage:     MaxPerPage,
		MaxPages:    10,
		Delay:       2 * time.Second,
		MaxRetries:  3,
		Backoff:     DefaultBackoff(),
		ProviderCap: ProviderCap,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.PerPage <= 0 || c.PerPage > MaxPerPage {
		c.PerPage = d.PerPage
	}
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.ProviderCap <= 0 {
		c.ProviderCap = d.ProviderCap
	}
}

// Sink receives the hits of a shard as each page arrives and returns how
// many candidate values it extracted from them.
type Sink interface {
	Add(shardID string, hits ...types.SearchHit) int
}

// Executor drives shards against a provider. One Executor may run many
// shards concurrently; they share its Budget.
type Executor struct {
	provider Provider
	budget   *Budget
	cfg      Config
	log      *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewExecutor returns an executor. A nil budget disables pacing; a nil
// logger discards logs.
func NewExecutor(p Provider, b *Budget, cfg Config, log *zap.Logger) *Executor {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{provider: p, budget: b, cfg: cfg, log: log, sleep: sleepCtx}
}

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunShard walks shard page by page, feeding hits to sink as they arrive.
// The returned stats always describe what was fetched, including on
// failure. A non-nil error is returned only for failures that must stop
// the whole run (ErrProviderAuth); shard-scoped failures are reported
// through stats.TerminalReason and stats.Error.
func (e *Executor) RunShard(ctx context.Context, shard types.ShardDefinition, sink Sink) (types.ShardStats, error) {
	stats := types.ShardStats{ShardID: shard.ID, Dimension: shard.Dimension, Query: shard.Query}
	start := time.Now()
	defer func() { stats.Duration = time.Since(start) }()

	log := e.log.With(logging.Shard(shard.ID))
	stop := func(reason types.TerminalReason, err error) {
		stats.TerminalReason = reason
		if err != nil {
			stats.Error = err.Error()
		}
	}

	fetched := 0 // result offset consumed so far
	attempt := 0 // retries of the current page
	for page := 1; ; {
		if ctx.Err() != nil {
			stop(types.TerminalInterrupted, nil)
			return stats, nil
		}
		if err := e.budget.Wait(ctx); err != nil {
			stop(types.TerminalInterrupted, nil)
			return stats, nil
		}

		log.Debug("fetching page", zap.Int("page", page), zap.Int("attempt", attempt+1))
		res, err := e.provider.Search(ctx, Request{Query: shard.Query, Page: page, PerPage: e.cfg.PerPage})
		if err != nil {
			var rl *RateLimitError
			var mal *MalformedError
			switch {
			case ctx.Err() != nil:
				stop(types.TerminalInterrupted, nil)
				return stats, nil
			case errors.Is(err, ErrProviderAuth):
				stop(types.TerminalFatal, err)
				log.Error("provider rejected credentials", zap.Error(err))
				return stats, err
			case Retryable(err):
				if errors.As(err, &rl) {
					e.budget.Exhaust(rl.Reset)
				}
				if attempt >= e.cfg.MaxRetries {
					stop(types.TerminalFatal, fmt.Errorf("page %d: giving up after %d retries: %w", page, attempt, err))
					log.Warn("shard abandoned", zap.Int("page", page), zap.Int("retries", attempt), zap.Error(err))
					return stats, nil
				}
				d := e.cfg.Backoff.Delay(attempt)
				attempt++
				stats.RetryCount++
				log.Warn("retrying page", zap.Int("page", page), zap.Int("retry", attempt), zap.Duration("backoff", d), zap.Error(err))
				if err := e.sleep(ctx, d); err != nil {
					stop(types.TerminalInterrupted, nil)
					return stats, nil
				}
				continue
			case errors.As(err, &mal):
				stats.MalformedPages++
				fetched += e.cfg.PerPage
				log.Warn("skipping malformed page", zap.Int("page", page), zap.Error(err))
				res = Page{HasMore: true}
			default:
				stop(types.TerminalFatal, err)
				log.Warn("shard failed", zap.Int("page", page), zap.Error(err))
				return stats, nil
			}
		} else {
			stats.PagesFetched++
			if page == 1 {
				stats.TotalReported = res.Total
			}
			stats.HitsFound += len(res.Hits)
			stats.SkippedHits += res.Skipped
			e.budget.Observe(res.Rate)
			if sink != nil && len(res.Hits) > 0 {
				stats.CandidatesExtracted += sink.Add(shard.ID, res.Hits...)
			}
			fetched += len(res.Hits) + res.Skipped
			if len(res.Hits)+res.Skipped == 0 {
				res.HasMore = false
			}
		}
		attempt = 0

		switch {
		case fetched >= e.cfg.ProviderCap:
			stop(types.TerminalProviderCap, nil)
		case !res.HasMore:
			stop(types.TerminalNoMorePages, nil)
		case page >= e.cfg.MaxPages:
			stop(types.TerminalMaxPages, nil)
		}
		if stats.TerminalReason != "" {
			log.Info("shard finished",
				zap.String("reason", string(stats.TerminalReason)),
				zap.Int("pages", stats.PagesFetched),
				zap.Int("hits", stats.HitsFound),
				zap.Int("candidates", stats.CandidatesExtracted))
			return stats, nil
		}

		page++
		if err := e.sleep(ctx, e.cfg.Delay); err != nil {
			stop(types.TerminalInterrupted, nil)
			return stats, nil
		}
	}
}
