package core

import (
	"encoding/json"
	"io"
)

// MarshalOutcomes pretty-prints outcomes as JSON for humans or pipelines.
func MarshalOutcomes(w io.Writer, outcomes []Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}

// UnmarshalCandidates decodes a candidate list, for example the
// "candidates" array of a discovery results file.
func UnmarshalCandidates(r io.Reader) ([]Candidate, error) {
	var cs []Candidate
	if err := json.NewDecoder(r).Decode(&cs); err != nil {
		return nil, err
	}
	return cs, nil
}
