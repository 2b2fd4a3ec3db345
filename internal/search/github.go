package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/keyhound/keyhound/internal/config"
	"github.com/keyhound/keyhound/internal/types"
)

// GitHubProvider searches GitHub code search with text-match metadata.
type GitHubProvider struct {
	client *github.Client
}

// GitHubOption configures a GitHubProvider.
type GitHubOption func(*githubOptions) error

type githubOptions struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// WithBaseURL points the provider at a GitHub Enterprise or test server.
func WithBaseURL(u string) GitHubOption {
	return func(o *githubOptions) error {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		if _, err := url.Parse(u); err != nil {
			return fmt.Errorf("invalid GitHub base URL %q: %w", u, err)
		}
		o.baseURL = u
		return nil
	}
}

// WithHTTPClient sets the underlying transport before authentication is
// layered on top.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(o *githubOptions) error { o.httpClient = c; return nil }
}

// WithRequestTimeout bounds each search request.
func WithRequestTimeout(d time.Duration) GitHubOption {
	return func(o *githubOptions) error { o.timeout = d; return nil }
}

// NewGitHubProvider builds an authenticated code-search provider.
func NewGitHubProvider(ctx context.Context, token config.Secret, opts ...GitHubOption) (*GitHubProvider, error) {
	if !token.IsSet() {
		return nil, fmt.Errorf("GitHub token not set")
	}
	o := githubOptions{timeout: 30 * time.Second}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = o.timeout
	client := github.NewClient(tc)
	if o.baseURL != "" {
		u, _ := url.Parse(o.baseURL)
		client.BaseURL = u
	}
	return &GitHubProvider{client: client}, nil
}

// Search implements Provider.
func (g *GitHubProvider) Search(ctx context.Context, req Request) (Page, error) {
	perPage := req.PerPage
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	opts := &github.SearchOptions{
		TextMatch:   true,
		ListOptions: github.ListOptions{Page: req.Page, PerPage: perPage},
	}
	res, resp, err := g.client.Search.Code(ctx, req.Query, opts)
	if err != nil {
		return Page{}, classifyGitHubError(ctx, resp, err)
	}
	page := Page{HasMore: resp.NextPage != 0, Rate: rateInfo(resp.Rate)}
	if res.Total != nil {
		page.Total = *res.Total
	}
	for _, cr := range res.CodeResults {
		hit, ok := toHit(cr)
		if !ok {
			page.Skipped++
			continue
		}
		page.Hits = append(page.Hits, hit)
	}
	return page, nil
}

func toHit(cr *github.CodeResult) (types.SearchHit, bool) {
	if cr == nil || cr.Repository == nil || cr.Repository.GetFullName() == "" || cr.GetPath() == "" {
		return types.SearchHit{}, false
	}
	var frags []string
	for _, tm := range cr.TextMatches {
		if f := tm.GetFragment(); f != "" {
			frags = append(frags, f)
		}
	}
	return types.SearchHit{
		RepositoryID: cr.Repository.GetFullName(),
		FilePath:     cr.GetPath(),
		ContentURL:   cr.GetHTMLURL(),
		TextSnippet:  strings.Join(frags, "\n"),
	}, true
}

func rateInfo(r github.Rate) RateInfo {
	return RateInfo{Limit: r.Limit, Remaining: r.Remaining, Reset: r.Reset.Time}
}

// classifyGitHubError maps go-github errors onto the search error taxonomy.
func classifyGitHubError(ctx context.Context, resp *github.Response, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &RateLimitError{Reset: rle.Rate.Reset.Time, Message: rle.Message}
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		var reset time.Time
		if abuse.RetryAfter != nil {
			reset = time.Now().Add(*abuse.RetryAfter)
		}
		return &RateLimitError{Reset: reset, Message: abuse.Message}
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		code := er.Response.StatusCode
		switch {
		case code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrProviderAuth, er.Message)
		case code == http.StatusForbidden || code == http.StatusTooManyRequests:
			var reset time.Time
			if resp != nil {
				reset = resp.Rate.Reset.Time
			}
			return &RateLimitError{Reset: reset, Message: er.Message}
		case code >= 500:
			return &TransientError{Err: err}
		default:
			return &QueryError{StatusCode: code, Message: er.Message}
		}
	}
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	if errors.As(err, &syn) || errors.As(err, &typ) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &MalformedError{Err: err}
	}
	// network failures and anything unrecognised get another try
	return &TransientError{Err: err}
}
