package keyhound

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keyhound/keyhound/internal/audit"
	"github.com/keyhound/keyhound/internal/engine"
	"github.com/keyhound/keyhound/internal/report"
	"github.com/keyhound/keyhound/internal/search"
	"github.com/keyhound/keyhound/internal/types"
	"github.com/keyhound/keyhound/internal/verify"
)

var (
	flagKeyFile        string
	flagKey            string
	flagStart          int
	flagLimit          int
	flagValPrefix      string
	flagReuse          string
	flagFailOnValid    bool
	flagValConcurrency int
	flagValDelay       time.Duration
	flagValAttempts    int
	flagValBackoffBase time.Duration
	flagValBackoffMax  time.Duration
	flagValBaseURL     string
	flagValModel       string
	flagValTimeout     time.Duration

	validateCmd *cobra.Command
)

func init() {
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Check candidate keys against the issuing service",
		Long: "validate sends one minimal request per key and classifies the response as " +
			"VALID, INVALID or INDETERMINATE. Keys come from a file (one per line, or a search results .json) or --key.",
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
	rootCmd.AddCommand(validateCmd)

	f := validateCmd.Flags()
	f.StringVarP(&flagKeyFile, "file", "f", "keys.txt", "file with one key per line, or a search results .json")
	f.StringVarP(&flagKey, "key", "k", "", "validate a single key instead of a file")
	f.IntVarP(&flagStart, "start", "s", 0, "skip this many keys (0-based start index)")
	f.IntVarP(&flagLimit, "limit", "l", 0, "maximum number of keys to check (0 = all)")
	f.StringVar(&flagValPrefix, "prefix", "", "artifact file name prefix (default: validate_<timestamp>)")
	f.StringVar(&flagReuse, "reuse", "", "earlier _results.jsonl whose final outcomes are reused instead of re-probing")
	f.BoolVar(&flagFailOnValid, "fail-on-valid", false, "exit with status 1 when any key is VALID")

	def := verify.DefaultConfig()
	f.IntVar(&flagValConcurrency, "concurrency", 1, "keys checked in parallel")
	f.DurationVarP(&flagValDelay, "delay", "d", time.Second, "minimum spacing between probes")
	f.IntVar(&flagValAttempts, "max-attempts", def.MaxAttempts, "attempts per key before giving up as INDETERMINATE-FAILED")
	f.DurationVar(&flagValBackoffBase, "retry-backoff", def.Backoff.Base, "first wait after a failed probe; doubles per attempt")
	f.DurationVar(&flagValBackoffMax, "retry-backoff-max", def.Backoff.Max, "ceiling for the probe retry wait")
	f.StringVar(&flagValBaseURL, "base-url", verify.DefaultOpenAIBaseURL, "validation API base URL")
	f.StringVar(&flagValModel, "model", verify.DefaultOpenAIModel, "model used for the probe request")
	f.DurationVar(&flagValTimeout, "timeout", 30*time.Second, "per-probe timeout")
}

// validation is a resolved validation setup.
type validation struct {
	classifier *verify.Classifier
	cfg        engine.ValidateConfig
}

// newValidation builds the classifier and batch settings from the validate
// flags and the config files. search --validate passes validateCmd, whose
// flags are never set, so only the files and defaults apply there.
func newValidation(cmd *cobra.Command, c configs, log *zap.Logger) (validation, error) {
	l, g := c.validate()
	var v validation
	delay, err := pickDuration(cmd, "delay", flagValDelay, l.Delay, g.Delay)
	if err != nil {
		return v, err
	}
	base, err := pickDuration(cmd, "retry-backoff", flagValBackoffBase, l.BackoffBase, g.BackoffBase)
	if err != nil {
		return v, err
	}
	ceiling, err := pickDuration(cmd, "retry-backoff-max", flagValBackoffMax, l.BackoffMax, g.BackoffMax)
	if err != nil {
		return v, err
	}
	timeout, err := pickDuration(cmd, "timeout", flagValTimeout, l.Timeout, g.Timeout)
	if err != nil {
		return v, err
	}
	prober := verify.NewOpenAIProber(
		verify.WithBaseURL(pick(cmd, "base-url", flagValBaseURL, l.BaseURL, g.BaseURL)),
		verify.WithModel(pick(cmd, "model", flagValModel, l.Model, g.Model)),
		verify.WithTimeout(timeout),
	)
	v.classifier = verify.NewClassifier(prober, verify.Config{
		MaxAttempts: pick(cmd, "max-attempts", flagValAttempts, l.MaxAttempts, g.MaxAttempts),
		Backoff:     search.Backoff{Base: base, Max: ceiling},
	}, log)
	v.cfg = engine.ValidateConfig{
		Concurrency: pick(cmd, "concurrency", flagValConcurrency, l.Concurrency, g.Concurrency),
		Delay:       delay,
	}
	return v, nil
}

// runValidation checks values, writes the artifacts and the audit record,
// and prints the summary.
func runValidation(ctx context.Context, cmd *cobra.Command, c configs, v validation, values []string, prefix string, log *zap.Logger) (engine.ValidateResult, error) {
	errOut := cmd.ErrOrStderr()
	cfg := v.cfg
	cfg.Progress = func(done, total int, o types.ValidationOutcome) {
		fmt.Fprintf(errOut, "[%d/%d] %s\n", done, total, o.Status)
	}
	res := engine.Validate(ctx, v.classifier, values, cfg, log)

	dir := outputDir(cmd, c)
	paths, err := report.WriteValidation(dir, prefix, res)
	if err != nil {
		return res, fmt.Errorf("write validation results: %w", err)
	}
	if err := audit.NewAuditLog(dir).LogRun(audit.ValidateRecord(res)); err != nil {
		log.Warn("audit log not updated", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	report.PrintValidationSummary(out, res, report.PrintOptions{NoColor: noColor(cmd, c), ShowKeys: flagShowKeys})
	fmt.Fprintf(out, "\nValid keys: %s\nPer-key log: %s\n", paths.Valid, paths.Log)
	return res, nil
}

func runValidate(cmd *cobra.Command, _ []string) error {
	c, err := loadConfigs()
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if flagStart < 0 || flagLimit < 0 {
		return errors.New("--start and --limit must not be negative")
	}
	v, err := newValidation(cmd, c, log)
	if err != nil {
		return err
	}

	var values []string
	if flagKey != "" {
		values = []string{flagKey}
	} else {
		if values, err = report.LoadKeys(flagKeyFile); err != nil {
			return fmt.Errorf("read keys: %w", err)
		}
		v.cfg.Start, v.cfg.Limit = flagStart, flagLimit
	}

	if flagReuse != "" {
		prev, err := report.LoadOutcomes(flagReuse)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read earlier outcomes: %w", err)
		}
		for _, o := range prev {
			v.classifier.Remember(o)
		}
		log.Info("reusing earlier outcomes", zap.Int("outcomes", len(prev)))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runValidation(ctx, cmd, c, v, values, runPrefix(flagValPrefix, "validate"), log)
	if err != nil {
		return err
	}
	notifyUpdate(cmd)
	if flagFailOnValid && len(res.Valid()) > 0 {
		return &exitError{code: 1, err: fmt.Errorf("%d valid key(s) found", len(res.Valid()))}
	}
	return nil
}
