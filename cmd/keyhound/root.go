package keyhound

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyhound/keyhound/internal/update"
)

var (
	flagConfig        string
	flagOutputDir     string
	flagLogLevel      string
	flagLogFormat     string
	flagNoColor       bool
	flagShowKeys      bool
	flagNoUpdateCheck bool
	flagSelfUpdate    bool

	version = "0.1.0"
)

// rootCmd is the base Cobra command for the keyhound CLI.
var rootCmd = &cobra.Command{
	Use:   "keyhound",
	Short: "Find and verify API keys leaked in public code",
	Long: "keyhound shards a code-search query for a key prefix into many narrower queries, " +
		"merges what they find, and checks each candidate key against its service.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagSelfUpdate {
			v, err := update.SelfUpdate(version)
			if err != nil {
				return fmt.Errorf("self-update: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "keyhound is at version", v)
			return nil
		}
		return cmd.Help()
	},
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the keyhound CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(2)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: ./.keyhound.yml, then $XDG_CONFIG_HOME/keyhound/config.yml)")
	pf.StringVarP(&flagOutputDir, "output-dir", "o", "output", "directory for result files")
	pf.StringVar(&flagLogLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.StringVar(&flagLogFormat, "log-format", "console", "log format: console|json")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	pf.BoolVar(&flagShowKeys, "show-keys", false, "print full key values instead of masked ones")
	pf.BoolVar(&flagNoUpdateCheck, "no-update-check", false, "disable update check")
	rootCmd.Flags().BoolVar(&flagSelfUpdate, "self-update", false, "update keyhound to the latest release")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the keyhound version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "keyhound", version)
			notifyUpdate(cmd)
		},
	})
}
