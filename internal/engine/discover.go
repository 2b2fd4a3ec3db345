package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keyhound/keyhound/internal/aggregate"
	"github.com/keyhound/keyhound/internal/detectors"
	"github.com/keyhound/keyhound/internal/logging"
	"github.com/keyhound/keyhound/internal/search"
	"github.com/keyhound/keyhound/internal/shards"
	"github.com/keyhound/keyhound/internal/types"
)

// DiscoverConfig controls a discovery run.
type DiscoverConfig struct {
	Catalog shards.Config
	Search  search.Config

	// Workers is the number of shards executed concurrently (default 1).
	Workers int
	// ShardDelay is the pause a worker takes after finishing a shard.
	ShardDelay time.Duration
	// RequestsPerMinute paces provider calls across all workers (0 = off).
	RequestsPerMinute int
	// StartShard skips catalog entries with a lower index.
	StartShard int

	Pattern detectors.Pattern
	Exclude []string

	// Resume carries the result of an earlier run: its completed shards are
	// skipped and its candidates restored before new hits are merged.
	Resume *DiscoverResult
	// Checkpoint, if set, receives a snapshot after every finished shard.
	// Calls are serialized.
	Checkpoint func(DiscoverResult)
	// Progress, if set, is called with each shard's stats as it finishes.
	Progress func(types.ShardStats)
}

// DiscoverResult is everything a discovery run produced.
type DiscoverResult struct {
	RunID      string                  `json:"run_id"`
	Term       string                  `json:"term"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Shards     []types.ShardDefinition `json:"shards"`
	Stats      []types.ShardStats      `json:"shard_stats"`
	Candidates []types.Candidate       `json:"candidates"`
	// Pending lists shards that were never started (cancellation, abort or
	// StartShard).
	Pending      []string           `json:"pending_shards,omitempty"`
	ExcludedHits int                `json:"excluded_hits,omitempty"`
	Budget       search.BudgetState `json:"budget"`
	Interrupted  bool               `json:"interrupted,omitempty"`
	// Aborted holds the run-level error that stopped the run, if any.
	Aborted string `json:"aborted,omitempty"`
}

// CompletedShards returns the ids of shards that need not run again.
func (r DiscoverResult) CompletedShards() map[string]bool {
	out := map[string]bool{}
	for _, s := range r.Stats {
		if s.Completed() {
			out[s.ShardID] = true
		}
	}
	return out
}

// Discover runs the shard catalog against provider. Shard-scoped failures
// are recorded in the stats; only a provider authentication failure or an
// invalid configuration returns an error, and even then the partial result
// is returned alongside it. Cancelling ctx stops the run at the next shard
// or page boundary and marks the result interrupted.
func Discover(ctx context.Context, provider search.Provider, cfg DiscoverConfig, log *zap.Logger) (DiscoverResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	res := DiscoverResult{RunID: uuid.NewString(), Term: cfg.Catalog.Term, StartedAt: time.Now().UTC()}

	defs, err := shards.Catalog(cfg.Catalog)
	if err != nil {
		return res, fmt.Errorf("build shard catalog: %w", err)
	}
	res.Shards = defs

	agg, err := aggregate.New(aggregate.Options{Pattern: cfg.Pattern, Exclude: cfg.Exclude})
	if err != nil {
		return res, err
	}

	// stats by shard id; shards completed in an earlier run keep theirs
	stats := map[string]types.ShardStats{}
	done := map[string]bool{}
	if cfg.Resume != nil {
		for _, s := range cfg.Resume.Stats {
			if s.Completed() {
				stats[s.ShardID] = s
				done[s.ShardID] = true
			}
		}
		// shards that did not complete run again from page 1
		agg.Restore(fromShards(cfg.Resume.Candidates, done))
		log.Info("resuming discovery",
			zap.String("previous_run", cfg.Resume.RunID),
			zap.Int("completed_shards", len(done)),
			zap.Int("candidates", agg.Len()))
	}

	var todo []types.ShardDefinition
	for _, d := range defs {
		if d.Index < cfg.StartShard || done[d.ID] {
			continue
		}
		todo = append(todo, d)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	budget := search.NewBudget(cfg.RequestsPerMinute)
	exec := search.NewExecutor(provider, budget, cfg.Search, log)

	var mu sync.Mutex
	snapshot := func() DiscoverResult {
		out := res
		out.Stats = ordered(defs, stats)
		out.Candidates = agg.Snapshot()
		out.ExcludedHits = agg.Excluded()
		out.Budget = budget.Snapshot()
		return out
	}

	log.Info("discovery started",
		zap.String("run", res.RunID),
		zap.Int("shards", len(defs)),
		zap.Int("to_run", len(todo)),
		zap.Int("workers", workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, d := range todo {
		if gctx.Err() != nil {
			break
		}
		d, last := d, i == len(todo)-1
		g.Go(func() error {
			// the slot may open only after the run was stopped
			if gctx.Err() != nil {
				return nil
			}
			st, err := exec.RunShard(gctx, d, agg)
			mu.Lock()
			stats[d.ID] = st
			if cfg.Progress != nil {
				cfg.Progress(st)
			}
			if cfg.Checkpoint != nil {
				cfg.Checkpoint(snapshot())
			}
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("shard %s: %w", d.ID, err)
			}
			if !last && st.TerminalReason != types.TerminalInterrupted {
				_ = sleep(gctx, cfg.ShardDelay)
			}
			return nil
		})
	}
	runErr := g.Wait()

	mu.Lock()
	defer mu.Unlock()
	out := snapshot()
	out.FinishedAt = time.Now().UTC()
	for _, d := range defs {
		if _, ok := stats[d.ID]; !ok {
			out.Pending = append(out.Pending, d.ID)
		}
	}
	switch {
	case runErr != nil:
		out.Aborted = runErr.Error()
		log.Error("discovery aborted", zap.Error(runErr), zap.Int("candidates", len(out.Candidates)))
		return out, runErr
	case ctx.Err() != nil:
		out.Interrupted = true
		log.Warn("discovery interrupted", zap.Int("pending_shards", len(out.Pending)), zap.Int("candidates", len(out.Candidates)))
	default:
		log.Info("discovery finished", zap.Int("candidates", len(out.Candidates)), zap.Duration("elapsed", out.FinishedAt.Sub(out.StartedAt)))
	}
	for _, c := range out.Candidates {
		log.Debug("candidate", logging.Secret("key", c.Value), logging.Shard(c.FirstSeenShard), zap.Int("occurrences", c.OccurrenceCount))
	}
	return out, nil
}

// fromShards keeps only the sightings made by the given shards. Counts are
// recomputed from what is left and candidates left without a sighting are
// dropped.
func fromShards(cands []types.Candidate, keep map[string]bool) []types.Candidate {
	var out []types.Candidate
	for _, c := range cands {
		var locs []types.Location
		for _, l := range c.SourceLocations {
			if keep[l.ShardID] {
				locs = append(locs, l)
			}
		}
		if len(locs) == 0 {
			continue
		}
		c.SourceLocations = locs
		c.OccurrenceCount = len(locs)
		if !keep[c.FirstSeenShard] {
			c.FirstSeenShard = locs[0].ShardID
		}
		out = append(out, c)
	}
	return out
}

func ordered(defs []types.ShardDefinition, stats map[string]types.ShardStats) []types.ShardStats {
	out := make([]types.ShardStats, 0, len(stats))
	for _, d := range defs {
		if s, ok := stats[d.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
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
