package keyhound

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/keyhound/keyhound/internal/report"
	"github.com/keyhound/keyhound/internal/shards"
)

var flagShardsJSON bool

func init() {
	cmd := &cobra.Command{
		Use:   "shards",
		Short: "List the shard queries a search would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfigs()
			if err != nil {
				return err
			}
			cfg, _, err := catalogConfig(cmd, c)
			if err != nil {
				return err
			}
			defs, err := shards.Catalog(cfg)
			if err != nil {
				return err
			}
			if flagShardsJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}
			report.PrintCatalog(cmd.OutOrStdout(), defs, report.PrintOptions{NoColor: noColor(cmd, c)})
			return nil
		},
	}
	rootCmd.AddCommand(cmd)
	addCatalogFlags(cmd)
	cmd.Flags().BoolVar(&flagShardsJSON, "json", false, "print the full catalog as JSON")
}
