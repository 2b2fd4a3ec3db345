package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/keyhound/keyhound/internal/engine"
	"github.com/keyhound/keyhound/internal/types"
)

// Artifact files carry raw secret values; keep them private.
const filePerm = 0o600

// DiscoveryPaths are the files WriteDiscovery produces.
type DiscoveryPaths struct {
	Results string // full result: shard stats and candidates
	Keys    string // one candidate value per line
	Stats   string // shard performance summary
}

// ValidationPaths are the files WriteValidation produces.
type ValidationPaths struct {
	Valid string // one VALID value per line
	Log   string // one JSON outcome per line
}

// DiscoveryFiles returns the artifact paths for prefix under dir.
func DiscoveryFiles(dir, prefix string) DiscoveryPaths {
	base := filepath.Join(dir, prefix)
	return DiscoveryPaths{Results: base + ".json", Keys: base + "_keys.txt", Stats: base + "_stats.txt"}
}

// ValidationFiles returns the artifact paths for prefix under dir.
func ValidationFiles(dir, prefix string) ValidationPaths {
	base := filepath.Join(dir, prefix)
	return ValidationPaths{Valid: base + "_valid.txt", Log: base + "_results.jsonl"}
}

// WriteDiscovery writes the three discovery artifacts.
func WriteDiscovery(dir, prefix string, res engine.DiscoverResult) (DiscoveryPaths, error) {
	p := DiscoveryFiles(dir, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return p, fmt.Errorf("create output dir: %w", err)
	}
	if err := writeJSON(p.Results, res); err != nil {
		return p, err
	}
	values := make([]string, len(res.Candidates))
	for i, c := range res.Candidates {
		values[i] = c.Value
	}
	if err := writeLines(p.Keys, values); err != nil {
		return p, err
	}
	if err := writeFile(p.Stats, func(w io.Writer) error { return WriteShardStats(w, res) }); err != nil {
		return p, err
	}
	return p, nil
}

// WriteValidation writes the list of live keys and the per-key log.
func WriteValidation(dir, prefix string, res engine.ValidateResult) (ValidationPaths, error) {
	p := ValidationFiles(dir, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return p, fmt.Errorf("create output dir: %w", err)
	}
	if err := writeLines(p.Valid, res.Valid()); err != nil {
		return p, err
	}
	err := writeFile(p.Log, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, o := range res.Outcomes {
			if err := enc.Encode(o); err != nil {
				return err
			}
		}
		return nil
	})
	return p, err
}

// WriteShardStats renders the shard performance summary: per-shard
// execution figures, then shards ranked by candidates extracted.
func WriteShardStats(w io.Writer, res engine.DiscoverResult) error {
	fmt.Fprintln(w, "SHARD PERFORMANCE")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	t := tablewriter.NewWriter(w)
	t.Header("Shard", "Pages", "Hits", "Candidates", "Retries", "Reported", "Reason")
	for _, s := range res.Stats {
		reason := string(s.TerminalReason)
		if s.Error != "" {
			reason += ": " + s.Error
		}
		if err := t.Append([]string{
			s.ShardID,
			fmt.Sprint(s.PagesFetched),
			fmt.Sprint(s.HitsFound),
			fmt.Sprint(s.CandidatesExtracted),
			fmt.Sprint(s.RetryCount),
			fmt.Sprint(s.TotalReported),
			reason,
		}); err != nil {
			return err
		}
	}
	if err := t.Render(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "SHARD STATISTICS")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	for _, r := range RankShards(res) {
		fmt.Fprintf(w, "%s: %d keys (%d first seen)\n", r.ShardID, r.Candidates, r.FirstSeen)
	}
	if len(res.Pending) > 0 {
		fmt.Fprintf(w, "\nNot run: %s\n", strings.Join(res.Pending, ", "))
	}
	return nil
}

// ShardRank is one line of the ranked shard statistics.
type ShardRank struct {
	ShardID    string
	Candidates int
	FirstSeen  int
}

// RankShards orders shards by candidates extracted, most productive first.
// Ties keep catalog order.
func RankShards(res engine.DiscoverResult) []ShardRank {
	first := map[string]int{}
	for _, c := range res.Candidates {
		first[c.FirstSeenShard]++
	}
	out := make([]ShardRank, 0, len(res.Stats))
	for _, s := range res.Stats {
		out = append(out, ShardRank{ShardID: s.ShardID, Candidates: s.CandidatesExtracted, FirstSeen: first[s.ShardID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Candidates > out[j].Candidates })
	return out
}

// LoadKeys reads candidate values from a key file: one per line, blank
// lines and lines starting with '#' ignored. A discovery results file
// (.json) is accepted too.
func LoadKeys(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		res, err := LoadDiscovery(path)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(res.Candidates))
		for i, c := range res.Candidates {
			out[i] = c.Value
		}
		return out, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// LoadDiscovery reads a results file written by WriteDiscovery.
func LoadDiscovery(path string) (engine.DiscoverResult, error) {
	var res engine.DiscoverResult
	b, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return res, fmt.Errorf("parse %s: %w", path, err)
	}
	return res, nil
}

// LoadOutcomes reads a per-key log written by WriteValidation.
func LoadOutcomes(path string) ([]types.ValidationOutcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []types.ValidationOutcome
	dec := json.NewDecoder(f)
	for dec.More() {
		var o types.ValidationOutcome
		if err := dec.Decode(&o); err != nil {
			return out, fmt.Errorf("parse %s: %w", path, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func writeLines(path string, lines []string) error {
	return writeFile(path, func(w io.Writer) error {
		for _, l := range lines {
			if _, err := fmt.Fprintln(w, l); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeFile writes through a temp file and renames it into place so a
// reader never sees a half-written artifact.
func writeFile(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
