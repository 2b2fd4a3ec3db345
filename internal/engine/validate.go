package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/keyhound/keyhound/internal/types"
	"github.com/keyhound/keyhound/internal/verify"
)

// Checker classifies one candidate value. *verify.Classifier implements it.
type Checker interface {
	Validate(ctx context.Context, value string) types.ValidationOutcome
}

// ValidateConfig controls a validation batch.
type ValidateConfig struct {
	// Concurrency is the number of probes in flight (default 1).
	Concurrency int
	// Delay is the minimum spacing between probe starts across workers.
	Delay time.Duration
	// Start skips the first Start values; Limit caps how many are checked
	// after that (0 = all).
	Start int
	Limit int
	// Progress, if set, is called with each outcome. Calls are serialized.
	Progress func(done, total int, o types.ValidationOutcome)
}

// ValidateResult is the outcome of a validation batch, in input order.
type ValidateResult struct {
	RunID       string                    `json:"run_id"`
	StartedAt   time.Time                 `json:"started_at"`
	FinishedAt  time.Time                 `json:"finished_at"`
	Total       int                       `json:"total"`
	Outcomes    []types.ValidationOutcome `json:"outcomes"`
	Interrupted bool                      `json:"interrupted,omitempty"`
}

// Counts tallies outcomes by status.
func (r ValidateResult) Counts() map[types.Status]int {
	out := map[types.Status]int{}
	for _, o := range r.Outcomes {
		out[o.Status]++
	}
	return out
}

// Valid returns the values classified VALID, in input order.
func (r ValidateResult) Valid() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Status == types.StatusValid {
			out = append(out, o.CandidateValue)
		}
	}
	return out
}

// Batch normalizes, deduplicates and slices values the way Validate does.
func Batch(values []string, start, limit int) []string {
	seen := map[string]bool{}
	var uniq []string
	for _, v := range values {
		v = verify.Normalize(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		uniq = append(uniq, v)
	}
	if start < 0 {
		start = 0
	}
	if start >= len(uniq) {
		return nil
	}
	uniq = uniq[start:]
	if limit > 0 && limit < len(uniq) {
		uniq = uniq[:limit]
	}
	return uniq
}

// Validate classifies values with bounded concurrency. Outcomes of
// different values are independent; the result keeps input order. A
// cancelled ctx stops new probes; values never probed are left out of the
// result and the result is marked interrupted.
func Validate(ctx context.Context, c Checker, values []string, cfg ValidateConfig, log *zap.Logger) ValidateResult {
	if log == nil {
		log = zap.NewNop()
	}
	batch := Batch(values, cfg.Start, cfg.Limit)
	res := ValidateResult{RunID: uuid.NewString(), StartedAt: time.Now().UTC(), Total: len(batch)}

	workers := cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.Delay > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}

	log.Info("validation started", zap.String("run", res.RunID), zap.Int("keys", len(batch)), zap.Int("concurrency", workers))

	outcomes := make([]types.ValidationOutcome, len(batch))
	var g errgroup.Group
	g.SetLimit(workers)
	progress := make(chan types.ValidationOutcome)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		n := 0
		for o := range progress {
			n++
			if cfg.Progress != nil {
				cfg.Progress(n, len(batch), o)
			}
		}
	}()
	for i, v := range batch {
		if ctx.Err() != nil {
			break
		}
		i, v := i, v
		g.Go(func() error {
			if err := lim.Wait(ctx); err != nil {
				return nil
			}
			o := c.Validate(ctx, v)
			outcomes[i] = o
			progress <- o
			return nil
		})
	}
	_ = g.Wait()
	close(progress)
	<-progressDone

	for _, o := range outcomes {
		if o.Status != "" {
			res.Outcomes = append(res.Outcomes, o)
		}
	}
	res.FinishedAt = time.Now().UTC()
	res.Interrupted = ctx.Err() != nil || len(res.Outcomes) < len(batch)
	counts := res.Counts()
	log.Info("validation finished",
		zap.Int("valid", counts[types.StatusValid]),
		zap.Int("invalid", counts[types.StatusInvalid]),
		zap.Int("indeterminate", counts[types.StatusIndeterminate]+counts[types.StatusIndeterminateFailed]),
		zap.Bool("interrupted", res.Interrupted))
	return res
}
