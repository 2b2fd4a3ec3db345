package shards

import (
	"errors"
	"fmt"
	"strings"

	"github.com/keyhound/keyhound/internal/types"
)

// ErrUnknownDimension is returned when a configuration names a dimension
// the catalog does not know.
var ErrUnknownDimension = errors.New("unknown shard dimension")

// Combo pairs a language with an extension it is commonly stored under.
type Combo struct {
	Language  string `yaml:"language" json:"language"`
	Extension string `yaml:"extension" json:"extension"`
}

// Config selects which shards the catalog produces.
type Config struct {
	// Term is the literal every query starts with (e.g. "sk-proj-").
	Term       string
	Dimensions []types.Dimension
	Languages  []string
	Extensions []string
	Combos     []Combo
	Filenames  []string
	Paths      []string
	// MaxShards caps the catalog length (0 = no cap). The basic shard is
	// always kept and takes the last slot.
	MaxShards int
}

// order is the fixed dimension order of the catalog.
var order = []types.Dimension{
	types.DimLanguage,
	types.DimExtension,
	types.DimCombo,
	types.DimFilename,
	types.DimPath,
	types.DimBasic,
}

// Dimensions returns every known dimension in catalog order.
func Dimensions() []types.Dimension {
	out := make([]types.Dimension, len(order))
	copy(out, order)
	return out
}

// ParseDimensions converts names into dimensions, rejecting unknown ones.
// An empty input selects every dimension.
func ParseDimensions(names []string) ([]types.Dimension, error) {
	if len(names) == 0 {
		return Dimensions(), nil
	}
	var out []types.Dimension
	seen := map[types.Dimension]bool{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		d := types.Dimension(n)
		if !known(d) {
			return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownDimension, n, joinDims(order))
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

func known(d types.Dimension) bool {
	for _, o := range order {
		if o == d {
			return true
		}
	}
	return false
}

func joinDims(ds []types.Dimension) string {
	s := make([]string, len(ds))
	for i, d := range ds {
		s[i] = string(d)
	}
	return strings.Join(s, ", ")
}

// Catalog enumerates the shards for cfg. The result depends only on cfg:
// same order, same ids, same queries on every call.
func Catalog(cfg Config) ([]types.ShardDefinition, error) {
	if strings.TrimSpace(cfg.Term) == "" {
		return nil, errors.New("shard catalog: empty search term")
	}
	if cfg.MaxShards < 0 {
		return nil, fmt.Errorf("shard catalog: negative max shards %d", cfg.MaxShards)
	}
	active := map[types.Dimension]bool{}
	for _, d := range cfg.Dimensions {
		if !known(d) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, d)
		}
		active[d] = true
	}
	if len(cfg.Dimensions) == 0 {
		for _, d := range order {
			active[d] = true
		}
	}

	var out []types.ShardDefinition
	seen := map[string]bool{}
	add := func(dim types.Dimension, value, fragment, desc string) {
		id := string(dim) + ":" + value
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, types.ShardDefinition{
			ID:            id,
			Dimension:     dim,
			QueryFragment: fragment,
			Description:   desc,
		})
	}

	for _, dim := range order {
		if !active[dim] {
			continue
		}
		switch dim {
		case types.DimLanguage:
			for _, l := range cfg.Languages {
				l = strings.TrimSpace(l)
				if l != "" {
					add(dim, l, "language:"+l, "Language: "+l)
				}
			}
		case types.DimExtension:
			for _, e := range cfg.Extensions {
				e = strings.TrimPrefix(strings.TrimSpace(e), ".")
				if e != "" {
					add(dim, e, "extension:"+e, "Extension: ."+e)
				}
			}
		case types.DimCombo:
			for _, c := range cfg.Combos {
				l := strings.TrimSpace(c.Language)
				e := strings.TrimPrefix(strings.TrimSpace(c.Extension), ".")
				if l != "" && e != "" {
					add(dim, l+"+"+e, "language:"+l+" extension:"+e, "Combo: "+l+" + ."+e)
				}
			}
		case types.DimFilename:
			for _, f := range cfg.Filenames {
				f = strings.TrimSpace(f)
				if f != "" {
					add(dim, f, "filename:"+f, "Filename contains: "+f)
				}
			}
		case types.DimPath:
			for _, p := range cfg.Paths {
				p = strings.TrimSpace(p)
				if p != "" {
					add(dim, p, "path:"+p, "Path contains: "+p)
				}
			}
		}
	}

	if cfg.MaxShards > 0 && len(out) > cfg.MaxShards-1 {
		out = out[:cfg.MaxShards-1]
	}
	out = append(out, types.ShardDefinition{
		ID:          string(types.DimBasic),
		Dimension:   types.DimBasic,
		Description: "Basic search (no filters)",
	})

	term := strings.TrimSpace(cfg.Term)
	for i := range out {
		out[i].Index = i
		out[i].Query = strings.TrimSpace(term + " " + out[i].QueryFragment)
	}
	return out, nil
}

// GroupByDimension buckets shards by dimension, preserving catalog order
// inside each bucket.
func GroupByDimension(defs []types.ShardDefinition) map[types.Dimension][]types.ShardDefinition {
	out := map[types.Dimension][]types.ShardDefinition{}
	for _, d := range defs {
		out[d.Dimension] = append(out[d.Dimension], d)
	}
	return out
}
