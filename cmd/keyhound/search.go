package keyhound

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keyhound/keyhound/internal/audit"
	"github.com/keyhound/keyhound/internal/cache"
	"github.com/keyhound/keyhound/internal/config"
	"github.com/keyhound/keyhound/internal/engine"
	"github.com/keyhound/keyhound/internal/report"
	"github.com/keyhound/keyhound/internal/search"
	"github.com/keyhound/keyhound/internal/types"
)

var (
	flagStartShard     int
	flagPerPage        int
	flagMaxPages       int
	flagDelay          time.Duration
	flagShardDelay     time.Duration
	flagWorkers        int
	flagMaxRetries     int
	flagBackoffBase    time.Duration
	flagBackoffMax     time.Duration
	flagRPM            int
	flagExclude        string
	flagGitHubToken    string
	flagGitHubAPI      string
	flagPrefix         string
	flagCheckpoint     string
	flagResume         bool
	flagValidateAfter  bool
	flagBaseline       string
	flagUpdateBaseline bool
	flagSARIF          string
)

func init() {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search public code for keys, one shard query at a time",
		Long: "search runs every shard of the catalog against GitHub code search, extracts " +
			"key-shaped strings from the matched fragments and writes the deduplicated candidates.",
		Args: cobra.NoArgs,
		RunE: runSearch,
	}
	rootCmd.AddCommand(cmd)
	addCatalogFlags(cmd)

	def := search.DefaultConfig()
	f := cmd.Flags()
	f.IntVar(&flagStartShard, "start-shard", 0, "skip catalog entries before this index")
	f.IntVar(&flagPerPage, "per-page", def.PerPage, "results per page (max 100)")
	f.IntVar(&flagMaxPages, "max-pages", def.MaxPages, "maximum pages per shard")
	f.DurationVar(&flagDelay, "delay", def.Delay, "pause between pages of a shard")
	f.DurationVar(&flagShardDelay, "shard-delay", 2*time.Second, "pause between shards")
	f.IntVar(&flagWorkers, "workers", 1, "shards searched in parallel")
	f.IntVar(&flagMaxRetries, "max-retries", def.MaxRetries, "retries per page after a rate limit or transient failure")
	f.DurationVar(&flagBackoffBase, "backoff", def.Backoff.Base, "first retry wait; doubles per retry")
	f.DurationVar(&flagBackoffMax, "backoff-max", def.Backoff.Max, "ceiling for the retry wait")
	f.IntVar(&flagRPM, "requests-per-minute", 0, "pace search requests across workers (0 = only the provider's limit)")
	f.StringVar(&flagExclude, "exclude", "", "comma-separated globs; hits in matching file paths are ignored")
	f.StringVar(&flagGitHubToken, "github-token", "", "GitHub token (default: $GITHUB_TOKEN, $GH_TOKEN, then 'gh auth token')")
	f.StringVar(&flagGitHubAPI, "github-api-url", "", "GitHub API base URL, for GitHub Enterprise")
	f.StringVar(&flagPrefix, "prefix", "", "artifact file name prefix (default: search_<timestamp>)")
	f.StringVar(&flagCheckpoint, "checkpoint", "", "checkpoint file (default: <output-dir>/.keyhound_checkpoint.json)")
	f.BoolVar(&flagResume, "resume", false, "continue from the checkpoint, skipping shards it already finished")
	f.BoolVar(&flagValidateAfter, "validate", false, "validate new candidates when the search finishes")
	f.StringVar(&flagBaseline, "baseline", "", "baseline file; candidates recorded there are not reported as new")
	f.BoolVar(&flagUpdateBaseline, "update-baseline", false, "add this run's candidates to the baseline file")
	f.StringVar(&flagSARIF, "sarif", "", "also write a SARIF 2.1.0 report to this path")
}

// searchConfig resolves the executor and run settings.
func searchConfig(cmd *cobra.Command, c configs) (engine.DiscoverConfig, error) {
	l, g := c.local, c.global
	var dc engine.DiscoverConfig

	cat, pattern, err := catalogConfig(cmd, c)
	if err != nil {
		return dc, err
	}
	delay, err := pickDuration(cmd, "delay", flagDelay, l.Delay, g.Delay)
	if err != nil {
		return dc, err
	}
	shardDelay, err := pickDuration(cmd, "shard-delay", flagShardDelay, l.ShardDelay, g.ShardDelay)
	if err != nil {
		return dc, err
	}
	base, err := pickDuration(cmd, "backoff", flagBackoffBase, l.BackoffBase, g.BackoffBase)
	if err != nil {
		return dc, err
	}
	ceiling, err := pickDuration(cmd, "backoff-max", flagBackoffMax, l.BackoffMax, g.BackoffMax)
	if err != nil {
		return dc, err
	}

	dc = engine.DiscoverConfig{
		Catalog: cat,
		Search: search.Config{
			PerPage:    pick(cmd, "per-page", flagPerPage, l.PerPage, g.PerPage),
			MaxPages:   pick(cmd, "max-pages", flagMaxPages, l.MaxPages, g.MaxPages),
			Delay:      delay,
			MaxRetries: pick(cmd, "max-retries", flagMaxRetries, l.MaxRetries, g.MaxRetries),
			Backoff:    search.Backoff{Base: base, Max: ceiling},
		},
		Workers:           pick(cmd, "workers", flagWorkers, l.Workers, g.Workers),
		ShardDelay:        shardDelay,
		RequestsPerMinute: pick(cmd, "requests-per-minute", flagRPM, l.RequestsPM, g.RequestsPM),
		StartShard:        flagStartShard,
		Pattern:           pattern,
	}
	var local, global []string
	if l.Exclude != nil {
		local = splitList(*l.Exclude)
	}
	if g.Exclude != nil {
		global = splitList(*g.Exclude)
	}
	dc.Exclude = pickList(cmd, "exclude", flagExclude, local, global, nil)
	if dc.Search.PerPage > search.MaxPerPage {
		return dc, fmt.Errorf("per-page must be at most %d", search.MaxPerPage)
	}
	if flagStartShard < 0 {
		return dc, errors.New("--start-shard must not be negative")
	}
	return dc, nil
}

func runSearch(cmd *cobra.Command, _ []string) error {
	c, err := loadConfigs()
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	dc, err := searchConfig(cmd, c)
	if err != nil {
		return err
	}
	dir := outputDir(cmd, c)
	cpPath := flagCheckpoint
	if cpPath == "" {
		cpPath = cache.DefaultPath(dir, "keyhound")
	}
	if flagResume {
		prev, err := cache.LoadCheckpoint(cpPath)
		switch {
		case err == nil:
			dc.Resume = &prev
		case errors.Is(err, cache.ErrNoCheckpoint):
			log.Warn("no checkpoint to resume from; starting fresh", zap.String("path", cpPath))
		default:
			return err
		}
	}

	token, err := config.ResolveGitHubToken(flagGitHubToken)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []search.GitHubOption
	if flagGitHubAPI != "" {
		opts = append(opts, search.WithBaseURL(flagGitHubAPI))
	}
	provider, err := search.NewGitHubProvider(ctx, token, opts...)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	finished := 0
	dc.Progress = func(st types.ShardStats) {
		finished++
		fmt.Fprintf(errOut, "[%d] %-32s pages=%d hits=%d keys=%d %s\n",
			finished, st.ShardID, st.PagesFetched, st.HitsFound, st.CandidatesExtracted, st.TerminalReason)
	}
	dc.Checkpoint = func(r engine.DiscoverResult) {
		if err := cache.SaveCheckpoint(cpPath, r); err != nil {
			log.Warn("checkpoint not saved", zap.Error(err))
		}
	}

	res, runErr := engine.Discover(ctx, provider, dc, log)

	fresh := res.Candidates
	var base report.Baseline
	if flagBaseline != "" {
		if base, err = report.LoadBaseline(flagBaseline); err != nil {
			return fmt.Errorf("read baseline: %w", err)
		}
		fresh = report.FilterNew(res.Candidates, base)
	}

	prefix := runPrefix(flagPrefix, "search")
	paths, err := report.WriteDiscovery(dir, prefix, res)
	if err != nil {
		return errors.Join(runErr, fmt.Errorf("write results: %w", err))
	}
	if err := audit.NewAuditLog(dir).LogRun(audit.DiscoverRecord(res, len(fresh))); err != nil {
		log.Warn("audit log not updated", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	printOpts := report.PrintOptions{NoColor: noColor(cmd, c), ShowKeys: flagShowKeys}
	report.PrintShardSummary(out, res, printOpts)
	if len(fresh) > 0 {
		fmt.Fprintln(out)
		report.PrintCandidates(out, fresh, printOpts)
	}
	fmt.Fprintf(out, "\nResults: %s\nKeys: %s\nStats: %s\n", paths.Results, paths.Keys, paths.Stats)

	if res.Interrupted || runErr != nil {
		fmt.Fprintf(out, "Checkpoint kept at %s; rerun with --resume to continue.\n", cpPath)
	} else if err := cache.Remove(cpPath); err != nil {
		log.Warn("checkpoint not removed", zap.Error(err))
	}

	if flagUpdateBaseline && flagBaseline != "" {
		if err := report.SaveBaseline(flagBaseline, base, res.Candidates); err != nil {
			return errors.Join(runErr, fmt.Errorf("write baseline: %w", err))
		}
	}

	var outcomes []types.ValidationOutcome
	if flagValidateAfter && runErr == nil && ctx.Err() == nil && len(fresh) > 0 {
		fmt.Fprintln(out)
		v, err := newValidation(validateCmd, c, log)
		if err != nil {
			return err
		}
		vres, err := runValidation(ctx, cmd, c, v, valuesOf(fresh), prefix, log)
		if err != nil {
			return err
		}
		outcomes = vres.Outcomes
	}

	if flagSARIF != "" {
		if err := writeSARIF(flagSARIF, fresh, outcomes); err != nil {
			return errors.Join(runErr, err)
		}
	}

	if runErr != nil {
		return &exitError{code: 1, err: fmt.Errorf("search aborted: %w", runErr)}
	}
	notifyUpdate(cmd)
	return nil
}

func valuesOf(cands []types.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Value
	}
	return out
}

func writeSARIF(path string, cands []types.Candidate, outcomes []types.ValidationOutcome) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sarif: %w", err)
	}
	if err := report.WriteSARIF(f, cands, outcomes, version); err != nil {
		_ = f.Close()
		return fmt.Errorf("sarif: %w", err)
	}
	return f.Close()
}
