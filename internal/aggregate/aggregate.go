// Package aggregate turns raw search hits into a deduplicated candidate set
// with provenance. It is safe to feed concurrently from several shard
// workers, and a snapshot taken at any point is a consistent partial result.
package aggregate

import (
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/keyhound/keyhound/internal/detectors"
	"github.com/keyhound/keyhound/internal/types"
)

// Options configures extraction.
type Options struct {
	// Pattern is the structural pattern applied to snippets. The zero value
	// selects detectors.Default().
	Pattern detectors.Pattern
	// Exclude drops hits whose file path matches any of these globs
	// (doublestar syntax, e.g. "**/testdata/**").
	Exclude []string
}

// Aggregator merges hits by exact candidate value. The first shard to
// report a value owns it; later sightings only add locations.
type Aggregator struct {
	pattern detectors.Pattern
	exclude []string

	mu       sync.Mutex
	index    map[string]int // value -> position in cands
	cands    []types.Candidate
	excluded int
}

// New returns an empty aggregator.
func New(opts Options) (*Aggregator, error) {
	p := opts.Pattern
	if p.ID == "" {
		p = detectors.Default()
	} else if !p.Compiled() {
		c, err := p.Compile()
		if err != nil {
			return nil, err
		}
		p = c
	}
	for _, g := range opts.Exclude {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid exclude glob %q", g)
		}
	}
	return &Aggregator{
		pattern: p,
		exclude: append([]string(nil), opts.Exclude...),
		index:   map[string]int{},
	}, nil
}

// Add extracts candidate values from hits and merges them. A value repeated
// inside one hit counts once for that hit. It returns the number of
// (hit, value) pairs merged.
func (a *Aggregator) Add(shardID string, hits ...types.SearchHit) int {
	n := 0
	for _, h := range hits {
		if a.skip(h.FilePath) {
			a.mu.Lock()
			a.excluded++
			a.mu.Unlock()
			continue
		}
		values := distinct(a.pattern.Extract(h.TextSnippet))
		if len(values) == 0 {
			continue
		}
		loc := types.Location{
			RepositoryID: h.RepositoryID,
			FilePath:     h.FilePath,
			ContentURL:   h.ContentURL,
			ShardID:      shardID,
		}
		a.mu.Lock()
		for _, v := range values {
			a.merge(v, shardID, loc)
		}
		a.mu.Unlock()
		n += len(values)
	}
	return n
}

func distinct(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (a *Aggregator) skip(path string) bool {
	for _, g := range a.exclude {
		if ok, _ := doublestar.Match(g, path); ok {
			return true
		}
	}
	return false
}

// merge must be called with mu held.
func (a *Aggregator) merge(value, shardID string, loc types.Location) {
	if i, ok := a.index[value]; ok {
		c := &a.cands[i]
		c.SourceLocations = append(c.SourceLocations, loc)
		c.OccurrenceCount++
		return
	}
	a.index[value] = len(a.cands)
	a.cands = append(a.cands, types.Candidate{
		Value:           value,
		Detector:        a.pattern.ID,
		FirstSeenShard:  shardID,
		SourceLocations: []types.Location{loc},
		OccurrenceCount: 1,
	})
}

// Restore seeds the aggregator with candidates from an earlier, partial
// run. Values already present keep their first-seen shard and gain the
// restored locations.
func (a *Aggregator) Restore(cands []types.Candidate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range cands {
		if c.Value == "" {
			continue
		}
		if i, ok := a.index[c.Value]; ok {
			ex := &a.cands[i]
			ex.SourceLocations = append(ex.SourceLocations, c.SourceLocations...)
			ex.OccurrenceCount += c.OccurrenceCount
			continue
		}
		cp := c
		cp.SourceLocations = append([]types.Location(nil), c.SourceLocations...)
		if cp.Detector == "" {
			cp.Detector = a.pattern.ID
		}
		if cp.OccurrenceCount == 0 {
			cp.OccurrenceCount = len(cp.SourceLocations)
		}
		a.index[c.Value] = len(a.cands)
		a.cands = append(a.cands, cp)
	}
}

// Snapshot returns a copy of the candidates in first-seen order.
func (a *Aggregator) Snapshot() []types.Candidate {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.Candidate, len(a.cands))
	for i, c := range a.cands {
		out[i] = c
		out[i].SourceLocations = append([]types.Location(nil), c.SourceLocations...)
	}
	return out
}

// Lookup returns the candidate for value.
func (a *Aggregator) Lookup(value string) (types.Candidate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[value]
	if !ok {
		return types.Candidate{}, false
	}
	c := a.cands[i]
	c.SourceLocations = append([]types.Location(nil), c.SourceLocations...)
	return c, true
}

// Len is the number of distinct values seen.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cands)
}

// Excluded is the number of hits dropped by exclude globs.
func (a *Aggregator) Excluded() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.excluded
}

// Values returns the distinct values in first-seen order.
func (a *Aggregator) Values() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.cands))
	for i, c := range a.cands {
		out[i] = c.Value
	}
	return out
}
