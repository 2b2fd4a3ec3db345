package report

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/keyhound/keyhound/internal/logging"
	"github.com/keyhound/keyhound/internal/types"
)

// Baseline records candidates already known from earlier runs by
// fingerprint, so the file itself holds no secret values.
type Baseline struct {
	Items map[string]bool `json:"items"`
}

// LoadBaseline reads a baseline file. A missing file is an empty baseline.
func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Items: map[string]bool{}}
	f, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(f, &b); err != nil {
		return b, err
	}
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	return b, nil
}

// SaveBaseline writes the fingerprints of cands, merged with base.
func SaveBaseline(path string, base Baseline, cands []types.Candidate) error {
	b := Baseline{Items: map[string]bool{}}
	for k := range base.Items {
		b.Items[k] = true
	}
	for _, c := range cands {
		b.Items[logging.Fingerprint(c.Value)] = true
	}
	return writeJSON(path, b)
}

// FilterNew drops candidates present in base.
func FilterNew(cands []types.Candidate, base Baseline) []types.Candidate {
	var out []types.Candidate
	for _, c := range cands {
		if !base.Items[logging.Fingerprint(c.Value)] {
			out = append(out, c)
		}
	}
	return out
}
