package keyhound

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/keyhound/keyhound/internal/audit"
)

var (
	flagHistoryJSON   bool
	flagHistoryLimit  int
	flagHistoryDelete int
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show earlier search and validation runs",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	rootCmd.AddCommand(cmd)
	cmd.Flags().BoolVar(&flagHistoryJSON, "json", false, "print records as JSON")
	cmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "show at most this many runs (0 = all)")
	cmd.Flags().IntVar(&flagHistoryDelete, "delete", -1, "delete the record at this index (0 = newest)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	c, err := loadConfigs()
	if err != nil {
		return err
	}
	log := audit.NewAuditLog(outputDir(cmd, c))
	out := cmd.OutOrStdout()

	if cmd.Flags().Changed("delete") {
		if err := log.DeleteRecord(flagHistoryDelete); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted record %d\n", flagHistoryDelete)
		return nil
	}

	records, err := log.LoadHistory()
	if err != nil {
		return err
	}
	if flagHistoryLimit > 0 && len(records) > flagHistoryLimit {
		records = records[:flagHistoryLimit]
	}
	if flagHistoryJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No runs recorded in %s\n", log.Path())
		return nil
	}

	t := tablewriter.NewWriter(out)
	t.Header("#", "When", "Kind", "Run", "Candidates", "Result", "Duration")
	for i, r := range records {
		if err := t.Append([]string{
			fmt.Sprint(i),
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			r.Kind,
			shortID(r.RunID),
			fmt.Sprint(r.Candidates),
			summarize(r),
			r.Duration,
		}); err != nil {
			return err
		}
	}
	return t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// summarize renders the outcome column of a history row.
func summarize(r audit.RunRecord) string {
	var parts []string
	switch r.Kind {
	case audit.KindDiscover:
		parts = append(parts, fmt.Sprintf("%d/%d shards", r.ShardsRun, r.ShardsTotal))
		if r.NewCount != r.Candidates {
			parts = append(parts, fmt.Sprintf("%d new", r.NewCount))
		}
	case audit.KindValidate:
		parts = append(parts, fmt.Sprintf("%d valid", r.Statuses["VALID"]), fmt.Sprintf("%d invalid", r.Statuses["INVALID"]))
	}
	if r.Interrupted {
		parts = append(parts, "interrupted")
	}
	if r.Aborted != "" {
		parts = append(parts, "aborted")
	}
	return strings.Join(parts, ", ")
}
