package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhound/keyhound/internal/types"
)

// scriptedProvider answers each call with the next scripted step.
type scriptedProvider struct {
	mu    sync.Mutex
	steps []func(Request) (Page, error)
	reqs  []Request
}

func (p *scriptedProvider) Search(_ context.Context, req Request) (Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	if len(p.steps) == 0 {
		return Page{}, nil
	}
	step := p.steps[0]
	if len(p.steps) > 1 {
		p.steps = p.steps[1:]
	}
	return step(req)
}

func (p *scriptedProvider) pages() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.reqs))
	for i, r := range p.reqs {
		out[i] = r.Page
	}
	return out
}

func hits(n int, page int) []types.SearchHit {
	out := make([]types.SearchHit, n)
	for i := range out {
		out[i] = types.SearchHit{RepositoryID: "o/r", FilePath: fmt.Sprintf("p%d/f%d", page, i)}
	}
	return out
}

func ok(n int, more bool) func(Request) (Page, error) {
	return func(r Request) (Page, error) {
		return Page{Hits: hits(n, r.Page), HasMore: more, Total: 5000}, nil
	}
}

func fail(err error) func(Request) (Page, error) {
	return func(Request) (Page, error) { return Page{}, err }
}

type countingSink struct {
	mu   sync.Mutex
	seen int
	on   func()
}

func (s *countingSink) Add(_ string, hs ...types.SearchHit) int {
	s.mu.Lock()
	s.seen += len(hs)
	s.mu.Unlock()
	if s.on != nil {
		s.on()
	}
	return len(hs)
}

type sleepRecorder struct {
	mu sync.Mutex
	ds []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.ds = append(r.ds, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestExecutor(p Provider, cfg Config) (*Executor, *sleepRecorder) {
	e := NewExecutor(p, NewBudget(0), cfg, nil)
	rec := &sleepRecorder{}
	e.sleep = rec.sleep
	return e, rec
}

var shard = types.ShardDefinition{ID: "language:python", Dimension: types.DimLanguage, Query: "sk-proj- language:python"}

func TestRunShard_NoMorePages(t *testing.T) {
	p := &scriptedProvider{steps: []func(Request) (Page, error){ok(2, true), ok(1, false)}}
	e, rec := newTestExecutor(p, Config{PerPage: 2, MaxPages: 10, Delay: time.Second})
	sink := &countingSink{}

	stats, err := e.RunShard(context.Background(), shard, sink)
	require.NoError(t, err)
	assert.Equal(t, types.TerminalNoMorePages, stats.TerminalReason)
	assert.Equal(t, 2, stats.PagesFetched)
	assert.Equal(t, 3, stats.HitsFound)
	assert.Equal(t, 3, stats.CandidatesExtracted)
	assert.Equal(t, 5000, stats.TotalReported)
	assert.Equal(t, 3, sink.seen)
	assert.Equal(t, []int{1, 2}, p.pages())
	assert.Equal(t, []time.Duration{time.Second}, rec.ds)
	assert.True(t, stats.Completed())
}

func TestRunShard_ProviderCapBeatsMaxPages(t *testing.T) {
	p := &scriptedProvider{steps: []func(Request) (Page, error){ok(2, true)}}
	e, _ := newTestExecutor(p, Config{PerPage: 2, MaxPages: 2, ProviderCap: 4})

	stats, err := e.RunShard(context.Background(), shard, &countingSink{})
	require.NoError(t, err)
	assert.Equal(t, types.TerminalProviderCap, stats.TerminalReason)
	assert.Equal(t, 2, stats.PagesFetched)
}

func TestRunShard_MaxPages(t *testing.T) {
	p := &scriptedProvider{steps: []func(Request) (Page, error){ok(2, true)}}
	e, _ := newTestExecutor(p, Config{PerPage: 2, MaxPages: 3})

	stats, err := e.RunShard(context.Background(), shard, &countingSink{})
	require.NoError(t, err)
	assert.Equal(t, types.TerminalMaxPages, stats.TerminalReason)
	assert.Equal(t, []int{1, 2, 3}, p.pages())
}

func TestRunShard_EmptyPageEndsShard(t *testing.T) {
	p := &scriptedProvider{steps: []func(Request) (Page, error){ok(0, true)}}
	e, _ := newTestExecutor(p, Config{})

	stats, err := e.RunShard(context.Background(), shard, &countingSink{})
	require.NoError(t, err)
	assert.Equal(t, types.TerminalNoMorePages, stats.TerminalReason)
	assert.Equal(t, 1, stats.PagesFetched)
}

func TestRunShard_RetriesExhaustedKeepsPartial(t *testing.T) {
	rl := &RateLimitError{Message: "secondary rate limit"}
	p := &scriptedProvider{steps: []func(Request) (Page, error){ok(2, true), fail(rl)}}
	cfg := Config{PerPage: 2, MaxRetries: 2, Delay: time.Second, Backoff: Backoff{Base: 30 * time.Second, Max: 45 * time.Second}}
	e, rec := newTestExecutor(p, cfg)
	sink := &countingSink{}

	stats, err := e.RunShard(context.Background(), shard, sink)
	require.NoError(t, err, "a shard-scoped failure must not abort the run")
	assert.Equal(t, types.TerminalFatal, stats.TerminalReason)
	assert.Equal(t, 2, stats.RetryCount)
	assert.Equal(t, 1, stats.PagesFetched)
	assert.Equal(t, 2, sink.seen, "hits fetched before the failure are kept")
	assert.Contains(t, stats.Error, "giving up after 2 retries")
	assert.Equal(t, []int{1, 2, 2, 2}, p.pages(), "the same page is retried")
	// page delay, then two backoff delays
	assert.Equal(t, []time.Duration{time.Second, 30 * time.Second, 45 * time.Second}, rec.ds)
	assert.Equal(t, 3, e.budget.Snapshot().Limited)
	assert.False(t, stats.Completed())
}

func TestRunShard_RetryThenSuccess(t *testing.T) {
	p := &scriptedProvider{steps: []func(Request) (Page, error){
		fail(&TransientError{Err: errors.New("connection reset")}),
		ok(1, false),
	}}
	e, _ := newTestExecutor(p, Config{MaxRetries: 3})

	stats, err := e.RunShard(context.Background(), shard, &countingSink{})
	require.NoError(t, err)
	assert.Equal(t, types.TerminalNoMorePages, stats.TerminalReason)
	assert.Equal(t, 1, stats.RetryCount)
	assert.Empty(t, stats.Error)
}

func TestRunShard_AuthFailureAbortsRun(t *testing.T) {
	p := &scriptedProvider{steps: []func(Request) (Page, error){fail(fmt.Errorf("%w: Bad credentials", ErrProviderAuth))}}
	e, _ := newTestExecutor(p, Config{MaxRetries: 3})

	stats, err := e.RunShard(context.Background(), shard, &countingSink{})
	require.ErrorIs(t, err, ErrProviderAuth)
	assert.Equal(t, types.TerminalFatal, stats.TerminalReason)
	assert.Equal(t, 0, stats.RetryCount)
	assert.Len(t, p.pages(), 1)
}

func TestRunShard_MalformedPageSkipped(t *testing.T) {
	p := &scriptedProvider{steps: []func(Request) (Page, error){
		fail(&MalformedError{Err: errors.New("unexpected EOF")}),
		ok(1, false),
	}}
	e, _ := newTestExecutor(p, Config{})

	stats, err := e.RunShard(context.Background(), shard, &countingSink{})
	require.NoError(t, err)
	assert.Equal(t, types.TerminalNoMorePages, stats.TerminalReason)
	assert.Equal(t, 1, stats.MalformedPages)
	assert.Equal(t, 1, stats.PagesFetched)
	assert.Equal(t, []int{1, 2}, p.pages())
}

func TestRunShard_QueryErrorIsShardFatal(t *testing.T) {
	p := &scriptedProvider{steps: []func(Request) (Page, error){fail(&QueryError{StatusCode: 422, Message: "Validation Failed"})}}
	e, _ := newTestExecutor(p, Config{})

	stats, err := e.RunShard(context.Background(), shard, &countingSink{})
	require.NoError(t, err)
	assert.Equal(t, types.TerminalFatal, stats.TerminalReason)
	assert.Contains(t, stats.Error, "422")
}

func TestRunShard_CancelBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &scriptedProvider{steps: []func(Request) (Page, error){ok(2, true)}}
	e, _ := newTestExecutor(p, Config{PerPage: 2})
	sink := &countingSink{on: cancel}

	stats, err := e.RunShard(ctx, shard, sink)
	require.NoError(t, err)
	assert.Equal(t, types.TerminalInterrupted, stats.TerminalReason)
	assert.Equal(t, 1, stats.PagesFetched)
	assert.Equal(t, 2, sink.seen)
	assert.False(t, stats.Completed())
}

func TestRunShard_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptedProvider{}
	e, _ := newTestExecutor(p, Config{})

	stats, err := e.RunShard(ctx, shard, nil)
	require.NoError(t, err)
	assert.Equal(t, types.TerminalInterrupted, stats.TerminalReason)
	assert.Empty(t, p.pages())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&RateLimitError{}))
	assert.True(t, Retryable(fmt.Errorf("wrapped: %w", &TransientError{Err: errors.New("x")})))
	assert.False(t, Retryable(&MalformedError{Err: errors.New("x")}))
	assert.False(t, Retryable(ErrProviderAuth))
	assert.False(t, Retryable(&QueryError{StatusCode: 422}))
}
