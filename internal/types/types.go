package types

import "time"

// Dimension is the query axis a shard slices the search space along.
type Dimension string

const (
	DimLanguage  Dimension = "language"
	DimExtension Dimension = "extension"
	DimCombo     Dimension = "combo"
	DimFilename  Dimension = "filename"
	DimPath      Dimension = "path"
	DimBasic     Dimension = "basic"
)

// ShardDefinition is one distinct search query. The full query sent to the
// provider is the search term followed by QueryFragment.
type ShardDefinition struct {
	ID            string    `json:"id"`
	Index         int       `json:"index"`
	Dimension     Dimension `json:"dimension"`
	QueryFragment string    `json:"query_fragment"`
	Query         string    `json:"query"`
	Description   string    `json:"description"`
}

// SearchHit is one raw match returned by the search provider.
type SearchHit struct {
	RepositoryID string `json:"repository_id"`
	FilePath     string `json:"file_path"`
	ContentURL   string `json:"content_url"`
	TextSnippet  string `json:"text_snippet"`
}

// Location is where a candidate value was seen.
type Location struct {
	RepositoryID string `json:"repository_id"`
	FilePath     string `json:"file_path"`
	ContentURL   string `json:"content_url,omitempty"`
	ShardID      string `json:"shard_id"`
}

// Candidate is a deduplicated secret-shaped value with its provenance.
type Candidate struct {
	Value           string     `json:"value"`
	Detector        string     `json:"detector"`
	FirstSeenShard  string     `json:"first_seen_shard_id"`
	SourceLocations []Location `json:"source_locations"`
	OccurrenceCount int        `json:"occurrence_count"`
}

// TerminalReason explains why a shard stopped paginating.
type TerminalReason string

const (
	TerminalProviderCap TerminalReason = "exhausted-provider-cap"
	TerminalNoMorePages TerminalReason = "no-more-pages"
	TerminalMaxPages    TerminalReason = "max-pages-reached"
	TerminalFatal       TerminalReason = "fatal-error"
	// TerminalInterrupted marks a shard stopped by cancellation; partial
	// results fetched before the stop are kept.
	TerminalInterrupted TerminalReason = "interrupted"
)

// ShardStats is the per-shard execution record.
type ShardStats struct {
	ShardID             string         `json:"shard_id"`
	Dimension           Dimension      `json:"dimension"`
	Query               string         `json:"query"`
	PagesFetched        int            `json:"pages_fetched"`
	HitsFound           int            `json:"hits_found"`
	CandidatesExtracted int            `json:"candidates_extracted"`
	RetryCount          int            `json:"retry_count"`
	MalformedPages      int            `json:"malformed_pages,omitempty"`
	SkippedHits         int            `json:"skipped_hits,omitempty"`
	TotalReported       int            `json:"total_reported"`
	TerminalReason      TerminalReason `json:"terminal_reason"`
	Error               string         `json:"error,omitempty"`
	Duration            time.Duration  `json:"duration_ns"`
}

// Completed reports whether the shard finished on its own terms and need
// not be executed again when a run is resumed.
func (s ShardStats) Completed() bool {
	switch s.TerminalReason {
	case TerminalProviderCap, TerminalNoMorePages, TerminalMaxPages:
		return true
	}
	return false
}

// Status is the liveness classification of a candidate.
type Status string

const (
	StatusPending             Status = "PENDING"
	StatusValid               Status = "VALID"
	StatusInvalid             Status = "INVALID"
	StatusIndeterminate       Status = "INDETERMINATE"
	StatusIndeterminateFailed Status = "INDETERMINATE-FAILED"
)

// Terminal reports whether the status will never be re-evaluated.
func (s Status) Terminal() bool {
	return s == StatusValid || s == StatusInvalid || s == StatusIndeterminateFailed
}

// ErrorSubtype records which kind of service response produced a status.
type ErrorSubtype string

const (
	SubtypeNone              ErrorSubtype = "none"
	SubtypeKeyNotRecognized  ErrorSubtype = "key_not_recognized"
	SubtypeRateLimited       ErrorSubtype = "rate_limited"
	SubtypeQuotaExceeded     ErrorSubtype = "quota_exceeded"
	SubtypeBilling           ErrorSubtype = "billing"
	SubtypeUsageLimit        ErrorSubtype = "usage_limit"
	SubtypeAccountSuspended  ErrorSubtype = "account_suspended"
	SubtypeRegionRestricted  ErrorSubtype = "region_restricted"
	SubtypeOrganization      ErrorSubtype = "organization"
	SubtypeForbidden         ErrorSubtype = "forbidden"
	SubtypeAuthIssue         ErrorSubtype = "auth_issue"
	SubtypeModelUnavailable  ErrorSubtype = "model_unavailable"
	SubtypeBadRequest        ErrorSubtype = "bad_request"
	SubtypeNotFound          ErrorSubtype = "not_found"
	SubtypeInvalidParameters ErrorSubtype = "invalid_parameters"
	SubtypeServerError       ErrorSubtype = "server_error"
	SubtypeUnknown           ErrorSubtype = "unknown"

	// Transport failures; these never come from a service response.
	SubtypeTimeout           ErrorSubtype = "timeout"
	SubtypeConnection        ErrorSubtype = "connection"
	SubtypeMalformedResponse ErrorSubtype = "malformed_response"
)

// ValidationOutcome is the classification record for one candidate.
type ValidationOutcome struct {
	CandidateValue string       `json:"candidate_value"`
	Status         Status       `json:"status"`
	HTTPStatusCode int          `json:"http_status_code"`
	ErrorSubtype   ErrorSubtype `json:"error_subtype"`
	Message        string       `json:"message"`
	AttemptCount   int          `json:"attempt_count"`
	Timestamp      time.Time    `json:"timestamp"`
	Cached         bool         `json:"cached,omitempty"`
}
