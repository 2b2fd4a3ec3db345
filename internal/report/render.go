package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/keyhound/keyhound/internal/engine"
	"github.com/keyhound/keyhound/internal/logging"
	"github.com/keyhound/keyhound/internal/shards"
	"github.com/keyhound/keyhound/internal/types"
)

type PrintOptions struct {
	NoColor bool
	// ShowKeys prints full values instead of masked ones.
	ShowKeys bool
}

type palette struct {
	title, ok, bad, warn, dim func(string) string
}

func newPalette(w io.Writer, noColor bool) palette {
	if noColor {
		id := func(s string) string { return s }
		return palette{id, id, id, id, id}
	}
	r := lipgloss.NewRenderer(w)
	style := func(s lipgloss.Style) func(string) string { return func(x string) string { return s.Render(x) } }
	return palette{
		title: style(r.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))),
		ok:    style(r.NewStyle().Foreground(lipgloss.Color("2"))),
		bad:   style(r.NewStyle().Foreground(lipgloss.Color("1"))),
		warn:  style(r.NewStyle().Foreground(lipgloss.Color("3"))),
		dim:   style(r.NewStyle().Foreground(lipgloss.Color("240"))),
	}
}

func (p palette) status(s types.Status) string {
	switch s {
	case types.StatusValid:
		return p.ok(string(s))
	case types.StatusInvalid:
		return p.bad(string(s))
	default:
		return p.warn(string(s))
	}
}

// PrintShardSummary prints per-shard figures and run totals.
func PrintShardSummary(w io.Writer, res engine.DiscoverResult, opts PrintOptions) {
	p := newPalette(w, opts.NoColor)
	fmt.Fprintln(w, p.title("Shard results"))
	t := tablewriter.NewWriter(w)
	t.Header("Shard", "Pages", "Hits", "Candidates", "Retries", "Reason")
	reasons := map[types.TerminalReason]int{}
	for _, s := range res.Stats {
		reasons[s.TerminalReason]++
		_ = t.Append([]string{
			s.ShardID,
			fmt.Sprint(s.PagesFetched),
			fmt.Sprint(s.HitsFound),
			fmt.Sprint(s.CandidatesExtracted),
			fmt.Sprint(s.RetryCount),
			string(s.TerminalReason),
		})
	}
	_ = t.Render()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Shards run: %d of %d\n", len(res.Stats), len(res.Shards))
	keys := make([]string, 0, len(reasons))
	for r := range reasons {
		keys = append(keys, string(r))
	}
	sort.Strings(keys)
	for _, r := range keys {
		fmt.Fprintf(w, "  %-24s %d\n", r, reasons[types.TerminalReason(r)])
	}
	fmt.Fprintf(w, "Unique candidates: %s\n", p.ok(fmt.Sprint(len(res.Candidates))))
	if res.ExcludedHits > 0 {
		fmt.Fprintf(w, "Hits excluded by path: %d\n", res.ExcludedHits)
	}
	for _, s := range res.Stats {
		if s.TerminalReason == types.TerminalFatal {
			fmt.Fprintf(w, "%s %s: %s\n", p.bad("failed"), s.ShardID, s.Error)
		}
	}
	if len(res.Pending) > 0 {
		fmt.Fprintf(w, "%s %s\n", p.warn("not run:"), strings.Join(res.Pending, ", "))
	}
	if res.Interrupted {
		fmt.Fprintln(w, p.warn("Run interrupted; partial results kept."))
	}
	if res.Aborted != "" {
		fmt.Fprintf(w, "%s %s\n", p.bad("Run aborted:"), res.Aborted)
	}
}

// PrintCandidates lists candidates with their provenance.
func PrintCandidates(w io.Writer, cands []types.Candidate, opts PrintOptions) {
	p := newPalette(w, opts.NoColor)
	if len(cands) == 0 {
		fmt.Fprintln(w, "No candidates found")
		return
	}
	fmt.Fprintf(w, "Candidates: %d\n", len(cands))
	for _, c := range cands {
		v := logging.Mask(c.Value)
		if opts.ShowKeys {
			v = c.Value
		}
		loc := ""
		if len(c.SourceLocations) > 0 {
			l := c.SourceLocations[0]
			loc = l.RepositoryID + "/" + l.FilePath
		}
		fmt.Fprintf(w, "%s  x%-3d %s %s\n", v, c.OccurrenceCount, p.dim(c.FirstSeenShard), loc)
	}
}

// PrintValidationSummary prints each outcome and the status totals.
func PrintValidationSummary(w io.Writer, res engine.ValidateResult, opts PrintOptions) {
	p := newPalette(w, opts.NoColor)
	fmt.Fprintln(w, p.title("Validation results"))
	for _, o := range res.Outcomes {
		v := logging.Mask(o.CandidateValue)
		if opts.ShowKeys {
			v = o.CandidateValue
		}
		line := fmt.Sprintf("%-22s %s", p.status(o.Status), v)
		if o.ErrorSubtype != "" && o.ErrorSubtype != types.SubtypeNone {
			line += " (" + string(o.ErrorSubtype) + ")"
		}
		if o.HTTPStatusCode != 0 {
			line += fmt.Sprintf(" http=%d", o.HTTPStatusCode)
		}
		if o.Cached {
			line += " " + p.dim("cached")
		}
		fmt.Fprintln(w, line)
	}
	c := res.Counts()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Checked: %d of %d\n", len(res.Outcomes), res.Total)
	fmt.Fprintf(w, "Valid: %s  Invalid: %s  Indeterminate: %s\n",
		p.ok(fmt.Sprint(c[types.StatusValid])),
		p.bad(fmt.Sprint(c[types.StatusInvalid])),
		p.warn(fmt.Sprint(c[types.StatusIndeterminate]+c[types.StatusIndeterminateFailed])))
	if res.Interrupted {
		fmt.Fprintln(w, p.warn("Validation interrupted; unchecked keys were skipped."))
	}
}

// PrintCatalog prints the shard catalog grouped by dimension, with a few
// example queries per group.
func PrintCatalog(w io.Writer, defs []types.ShardDefinition, opts PrintOptions) {
	p := newPalette(w, opts.NoColor)
	groups := shards.GroupByDimension(defs)
	fmt.Fprintf(w, "%s %d\n", p.title("Total shards:"), len(defs))
	for _, dim := range shards.Dimensions() {
		g := groups[dim]
		if len(g) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d)\n", p.title(strings.ToUpper(string(dim))), len(g))
		for i, d := range g {
			if i == 3 {
				fmt.Fprintf(w, "  %s\n", p.dim(fmt.Sprintf("... and %d more", len(g)-3)))
				break
			}
			fmt.Fprintf(w, "  %3d  %-28s %s\n", d.Index, d.ID, p.dim(d.Query))
		}
	}
}
