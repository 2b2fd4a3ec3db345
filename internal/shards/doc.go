// Package shards builds the ordered catalog of search queries a discovery
// run executes. Each shard narrows the base search term along one dimension
// (language, extension, language+extension combo, filename, path) so that
// the union of their capped result sets covers more of the index than a
// single query could. The catalog is pure: no I/O, deterministic output.
package shards
