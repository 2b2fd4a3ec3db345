package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keyhound/keyhound/internal/types"
)

const (
	// ProviderCap is the number of results the provider will return for a
	// single distinct query, regardless of how many documents match.
	ProviderCap = 1000
	// MaxPerPage is the largest page size the provider accepts.
	MaxPerPage = 100
)

// Request is one page request for a query.
type Request struct {
	Query   string
	Page    int // 1-based
	PerPage int
}

// RateInfo is the provider's view of the request window after a call.
// Zero values mean the provider did not report them.
type RateInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Known reports whether the provider reported any rate information.
func (r RateInfo) Known() bool { return r.Limit > 0 || !r.Reset.IsZero() }

// Page is one page of results.
type Page struct {
	Hits []types.SearchHit
	// Total is the provider's reported number of matching documents, which
	// may exceed what can be retrieved.
	Total   int
	HasMore bool
	// Skipped counts raw results dropped because they lacked a repository
	// or path.
	Skipped int
	Rate    RateInfo
}

// Provider runs a single page of a search query.
type Provider interface {
	Search(ctx context.Context, req Request) (Page, error)
}

// ErrProviderAuth means the provider rejected our credentials. No further
// request can succeed, so the run stops.
var ErrProviderAuth = errors.New("search provider authentication failed")

// RateLimitError is returned when the provider refuses a request because
// the request window is exhausted.
type RateLimitError struct {
	Reset   time.Time // zero when unknown
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "rate limited: " + e.Message
	}
	return fmt.Sprintf("rate limited until %s: %s", e.Reset.Format(time.RFC3339), e.Message)
}

// TransientError wraps a failure that may succeed when retried (timeouts,
// connection resets, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient search failure: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// MalformedError means the provider answered but the page could not be
// decoded.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string { return "malformed search response: " + e.Err.Error() }
func (e *MalformedError) Unwrap() error { return e.Err }

// QueryError is a provider rejection of the query itself (e.g. 422). The
// shard cannot make progress but other shards can.
type QueryError struct {
	StatusCode int
	Message    string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("search query rejected (%d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether err should cause the same page to be retried.
func Retryable(err error) bool {
	var rl *RateLimitError
	var te *TransientError
	return errors.As(err, &rl) || errors.As(err, &te)
}
