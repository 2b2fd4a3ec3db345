package keyhound

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/keyhound/keyhound/internal/config"
	"github.com/keyhound/keyhound/internal/logging"
	"github.com/keyhound/keyhound/internal/shards"
	"github.com/keyhound/keyhound/internal/update"
)

// configs holds the two file layers below the command line.
type configs struct {
	local, global config.FileConfig
}

// loadConfigs reads --config (as the local layer) or the repo-local file,
// plus the global file. Missing files are fine; broken ones are not.
func loadConfigs() (configs, error) {
	var c configs
	if g, err := config.LoadGlobal(); err == nil {
		c.global = g
	} else if !errors.Is(err, config.ErrNoConfig) {
		return c, err
	}
	if flagConfig != "" {
		l, err := config.LoadFile(flagConfig)
		if err != nil {
			return c, err
		}
		c.local = l
		return c, nil
	}
	wd, _ := os.Getwd()
	if l, err := config.LoadLocal(wd); err == nil {
		c.local = l
	} else if !errors.Is(err, config.ErrNoConfig) {
		return c, err
	}
	return c, nil
}

func (c configs) validate() (config.ValidateConfig, config.ValidateConfig) {
	return c.local.ValidateSection(), c.global.ValidateSection()
}

// pick resolves a value: changed flag > local file > global file > flag default.
func pick[T any](cmd *cobra.Command, name string, cli T, local, global *T) T {
	if cmd.Flags().Changed(name) {
		return cli
	}
	if local != nil {
		return *local
	}
	if global != nil {
		return *global
	}
	return cli
}

func pickDuration(cmd *cobra.Command, name string, cli time.Duration, local, global *string) (time.Duration, error) {
	if cmd.Flags().Changed(name) {
		if cli < 0 {
			return 0, fmt.Errorf("--%s must not be negative", name)
		}
		return cli, nil
	}
	for _, v := range []*string{local, global} {
		if v != nil {
			return config.ParseDuration(*v)
		}
	}
	return cli, nil
}

// pickList resolves a comma-separated flag against list-valued config.
func pickList(cmd *cobra.Command, name, cli string, local, global, fallback []string) []string {
	switch {
	case cmd.Flags().Changed(name):
		return splitList(cli)
	case len(local) > 0:
		return local
	case len(global) > 0:
		return global
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseCombos reads "language+extension" pairs.
func parseCombos(items []string) ([]shards.Combo, error) {
	var out []shards.Combo
	for _, it := range items {
		l, e, ok := strings.Cut(it, "+")
		if !ok || strings.TrimSpace(l) == "" || strings.TrimSpace(e) == "" {
			return nil, fmt.Errorf("invalid combo %q (want language+extension)", it)
		}
		out = append(out, shards.Combo{Language: strings.TrimSpace(l), Extension: strings.TrimSpace(e)})
	}
	return out, nil
}

func newLogger(cmd *cobra.Command, c configs) (*zap.Logger, error) {
	level := pick(cmd, "log-level", flagLogLevel, c.local.LogLevel, c.global.LogLevel)
	format := pick(cmd, "log-format", flagLogFormat, c.local.LogFormat, c.global.LogFormat)
	return logging.New(logging.Options{Level: level, Format: format, Writer: cmd.ErrOrStderr()})
}

func noColor(cmd *cobra.Command, c configs) bool {
	if pick(cmd, "no-color", flagNoColor, c.local.NoColor, c.global.NoColor) {
		return true
	}
	return !isTerminal(cmd.OutOrStdout())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func outputDir(cmd *cobra.Command, c configs) string {
	return pick(cmd, "output-dir", flagOutputDir, c.local.OutputDir, c.global.OutputDir)
}

// runPrefix names the artifacts of one run when --prefix is not given.
func runPrefix(explicit, kind string) string {
	if explicit != "" {
		return explicit
	}
	return kind + "_" + time.Now().Format("20060102_150405")
}

func notifyUpdate(cmd *cobra.Command) {
	latest, newer, err := update.Check(cmd.Context(), version, flagNoUpdateCheck)
	if err == nil && newer {
		fmt.Fprintf(cmd.ErrOrStderr(), "A newer keyhound is available: %s (you have %s). Run 'keyhound --self-update'.\n", latest, version)
	}
}
