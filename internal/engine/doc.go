// Package engine coordinates keyhound runs. Discover expands the shard
// catalog, drives every shard through the search executor with a bounded
// worker pool and merges hits into one candidate set; Validate classifies a
// batch of candidate values with bounded concurrency. Both honour
// cancellation at shard, page and candidate boundaries and always return
// what was gathered. This package is internal; external consumers should
// use the stable facade in pkg/core.
package engine
