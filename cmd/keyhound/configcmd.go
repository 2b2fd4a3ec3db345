package keyhound

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keyhound/keyhound/internal/config"
	"github.com/keyhound/keyhound/internal/detectors"
	"github.com/keyhound/keyhound/internal/search"
	"github.com/keyhound/keyhound/internal/shards"
	"github.com/keyhound/keyhound/internal/verify"
)

var (
	cfgOutput  string
	cfgForce   bool
	cfgMinimal bool
)

const configHeader = `# keyhound configuration.
# Command-line flags override this file; this file overrides
# $XDG_CONFIG_HOME/keyhound/config.yml. Durations take Go syntax ("2s",
# "1m30s") or bare seconds. Remove a line to fall back to the default.
`

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a .keyhound.yml with the default settings",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	cfgCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&cfgOutput, "output", ".keyhound.yml", "output file path")
	initCmd.Flags().BoolVar(&cfgForce, "force", false, "overwrite an existing file")
	initCmd.Flags().BoolVar(&cfgMinimal, "minimal", false, "omit the default dimension value lists")

	checkCmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ".keyhound.yml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := config.LoadFile(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path, "is valid")
			return nil
		},
	}
	cfgCmd.AddCommand(checkCmd)
}

// starterConfig is the default configuration spelled out.
func starterConfig(minimal bool) config.FileConfig {
	sd := shards.DefaultConfig()
	sc := search.DefaultConfig()
	vc := verify.DefaultConfig()
	dims := make([]string, 0, len(sd.Dimensions))
	for _, d := range sd.Dimensions {
		dims = append(dims, string(d))
	}
	fc := config.FileConfig{
		Term:        strPtr(sd.Term),
		Detector:    strPtr(detectors.Default().ID),
		Dimensions:  dims,
		MaxShards:   intPtr(0),
		PerPage:     intPtr(sc.PerPage),
		MaxPages:    intPtr(sc.MaxPages),
		Delay:       strPtr(sc.Delay.String()),
		ShardDelay:  strPtr("2s"),
		Workers:     intPtr(1),
		MaxRetries:  intPtr(sc.MaxRetries),
		BackoffBase: strPtr(sc.Backoff.Base.String()),
		BackoffMax:  strPtr(sc.Backoff.Max.String()),
		RequestsPM:  intPtr(0),
		Exclude:     strPtr(""),
		Validate: &config.ValidateConfig{
			Concurrency: intPtr(1),
			Delay:       strPtr("1s"),
			MaxAttempts: intPtr(vc.MaxAttempts),
			BackoffBase: strPtr(vc.Backoff.Base.String()),
			BackoffMax:  strPtr(vc.Backoff.Max.String()),
			BaseURL:     strPtr(verify.DefaultOpenAIBaseURL),
			Model:       strPtr(verify.DefaultOpenAIModel),
			Timeout:     strPtr("30s"),
		},
		OutputDir: strPtr("output"),
		NoColor:   boolPtr(false),
		LogLevel:  strPtr("info"),
		LogFormat: strPtr("console"),
	}
	if !minimal {
		fc.Languages = sd.Languages
		fc.Extensions = sd.Extensions
		fc.Combos = sd.Combos
		fc.Filenames = sd.Filenames
		fc.Paths = sd.Paths
	}
	return fc
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(cfgOutput); err == nil && !cfgForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgOutput)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(starterConfig(cfgMinimal)); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	// unset list fields encode as null; drop them so the file stays readable
	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasSuffix(line, ": null") || strings.HasSuffix(line, ": []") {
			continue
		}
		lines = append(lines, line)
	}
	if err := os.WriteFile(cfgOutput, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", cfgOutput)
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
