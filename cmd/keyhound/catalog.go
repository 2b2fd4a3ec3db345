package keyhound

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyhound/keyhound/internal/detectors"
	"github.com/keyhound/keyhound/internal/shards"
)

var (
	flagTerm       string
	flagDetector   string
	flagDimensions string
	flagLanguages  string
	flagExtensions string
	flagCombos     string
	flagFilenames  string
	flagPaths      string
	flagMaxShards  int
)

// addCatalogFlags registers the flags that shape the shard catalog.
func addCatalogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagTerm, "term", "", "search term every query starts with (default: the detector's key prefix)")
	f.StringVar(&flagDetector, "detector", detectors.Default().ID, "key pattern to extract (see 'keyhound detectors')")
	f.StringVar(&flagDimensions, "dimensions", "", "comma-separated shard dimensions: language,extension,combo,filename,path,basic (default: all)")
	f.StringVar(&flagLanguages, "languages", "", "comma-separated languages for language shards")
	f.StringVar(&flagExtensions, "extensions", "", "comma-separated file extensions for extension shards")
	f.StringVar(&flagCombos, "combos", "", "comma-separated language+extension pairs for combo shards")
	f.StringVar(&flagFilenames, "filenames", "", "comma-separated filename fragments")
	f.StringVar(&flagPaths, "paths", "", "comma-separated path fragments")
	f.IntVar(&flagMaxShards, "max-shards", 0, "maximum number of shards, basic included (0 = all)")
}

// catalogConfig resolves the catalog flags against the config files.
func catalogConfig(cmd *cobra.Command, c configs) (shards.Config, detectors.Pattern, error) {
	l, g := c.local, c.global
	id := pick(cmd, "detector", flagDetector, l.Detector, g.Detector)
	pattern, ok := detectors.ByID(id)
	if !ok {
		return shards.Config{}, pattern, fmt.Errorf("unknown detector %q", id)
	}

	dims, err := shards.ParseDimensions(pickList(cmd, "dimensions", flagDimensions, l.Dimensions, g.Dimensions, nil))
	if err != nil {
		return shards.Config{}, pattern, err
	}
	def := shards.DefaultConfig()
	cfg := shards.Config{
		Term:       pick(cmd, "term", flagTerm, l.Term, g.Term),
		Dimensions: dims,
		Languages:  pickList(cmd, "languages", flagLanguages, l.Languages, g.Languages, def.Languages),
		Extensions: pickList(cmd, "extensions", flagExtensions, l.Extensions, g.Extensions, def.Extensions),
		Filenames:  pickList(cmd, "filenames", flagFilenames, l.Filenames, g.Filenames, def.Filenames),
		Paths:      pickList(cmd, "paths", flagPaths, l.Paths, g.Paths, def.Paths),
		MaxShards:  pick(cmd, "max-shards", flagMaxShards, l.MaxShards, g.MaxShards),
		Combos:     def.Combos,
	}
	switch {
	case cmd.Flags().Changed("combos"):
		if cfg.Combos, err = parseCombos(splitList(flagCombos)); err != nil {
			return cfg, pattern, err
		}
	case len(l.Combos) > 0:
		cfg.Combos = l.Combos
	case len(g.Combos) > 0:
		cfg.Combos = g.Combos
	}
	if cfg.Term == "" {
		cfg.Term = pattern.SearchTerm()
	}
	return cfg, pattern, nil
}
