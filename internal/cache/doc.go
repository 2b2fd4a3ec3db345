// Package cache persists discovery checkpoints so an interrupted run can be
// resumed without re-running the shards it already finished.
package cache
