package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/keyhound/keyhound/internal/logging"
	"github.com/keyhound/keyhound/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt `json:"artifactLocation"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

func statusToLevel(s types.Status) string {
	switch s {
	case types.StatusValid:
		return "error"
	case types.StatusInvalid:
		return "note"
	default:
		return "warning"
	}
}

// WriteSARIF writes candidates as SARIF 2.1.0. Each candidate is one
// result with a location per place it was seen; outcomes, when given,
// set the level (VALID = error, INVALID = note, otherwise warning). Secret
// values never appear in the output, only masks and fingerprints.
func WriteSARIF(w io.Writer, cands []types.Candidate, outcomes []types.ValidationOutcome, version string) error {
	byValue := map[string]types.ValidationOutcome{}
	for _, o := range outcomes {
		byValue[o.CandidateValue] = o
	}

	ruleIdx := map[string]int{}
	var ids []string
	for _, c := range cands {
		if _, ok := ruleIdx[c.Detector]; !ok {
			ruleIdx[c.Detector] = 0
			ids = append(ids, c.Detector)
		}
	}
	sort.Strings(ids)
	var rules []sarifRule
	for i, id := range ids {
		ruleIdx[id] = i
		rules = append(rules, sarifRule{ID: id, ShortDescription: sarifMessage{Text: id + " exposed in public code"}})
	}

	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "keyhound", Version: version, Rules: rules}},
		Results: []sarifResult{},
	}
	counts := map[string]int{}
	for _, c := range cands {
		status := types.StatusPending
		props := map[string]any{"occurrences": c.OccurrenceCount, "firstSeenShard": c.FirstSeenShard}
		if o, ok := byValue[c.Value]; ok {
			status = o.Status
			props["errorSubtype"] = string(o.ErrorSubtype)
			props["httpStatus"] = o.HTTPStatusCode
		}
		props["status"] = string(status)
		counts[string(status)]++

		res := sarifResult{
			RuleID:    c.Detector,
			RuleIndex: ruleIdx[c.Detector],
			Level:     statusToLevel(status),
			Message: sarifMessage{Text: fmt.Sprintf("%s %s found in %d location(s), status %s",
				c.Detector, logging.Mask(c.Value), len(c.SourceLocations), status)},
			PartialFingerprints: map[string]string{"keyFingerprint/v1": logging.Fingerprint(c.Value)},
			Properties:          props,
		}
		for _, l := range c.SourceLocations {
			uri := l.ContentURL
			if uri == "" {
				uri = l.RepositoryID + "/" + l.FilePath
			}
			res.Locations = append(res.Locations, sarifLoc{PhysicalLocation: sarifPhys{ArtifactLocation: sarifArt{URI: uri}}})
		}
		run.Results = append(run.Results, res)
	}
	run.Properties = map[string]any{"statusCounts": counts}

	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
