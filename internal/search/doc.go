// Package search executes shards against a hosted code-search provider.
//
// An Executor walks one shard page by page until the provider's result cap,
// the end of the result set, or the configured page bound is reached. Rate
// limiting is handled twice: a Budget shared by every worker paces requests
// and holds all of them back once the provider reports the window exhausted,
// and a capped exponential Backoff spaces retries of the same page.
//
// Errors returned by a Provider decide what happens to the shard:
//
//	ErrProviderAuth   abort the whole run
//	*RateLimitError   retry the page with backoff, update the shared budget
//	*TransientError   retry the page with backoff
//	*MalformedError   skip the page, keep going
//	anything else     stop the shard with fatal-error
package search
