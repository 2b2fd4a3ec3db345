package keyhound

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyhound/keyhound/internal/detectors"
)

func init() {
	cmd := &cobra.Command{
		Use:   "detectors",
		Short: "List available key patterns",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, id := range detectors.IDs() {
				p, _ := detectors.ByID(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", id, p.Prefix)
			}
		},
	}
	rootCmd.AddCommand(cmd)
}
