package keyhound

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyhound/keyhound/internal/report"
)

func init() {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baselines",
	}

	var from, file string
	update := &cobra.Command{
		Use:   "update",
		Short: "Record the candidates of a search results file in the baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := report.LoadDiscovery(from)
			if err != nil {
				return err
			}
			base, err := report.LoadBaseline(file)
			if err != nil {
				return err
			}
			if err := report.SaveBaseline(file, base, res.Candidates); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Baseline updated: %s (%d candidates from %s)\n", file, len(res.Candidates), from)
			return nil
		},
	}
	update.Flags().StringVar(&from, "from", "", "search results .json file")
	update.Flags().StringVar(&file, "file", "keyhound.baseline.json", "baseline file")
	_ = update.MarkFlagRequired("from")

	rootCmd.AddCommand(cmd)
	cmd.AddCommand(update)
}
