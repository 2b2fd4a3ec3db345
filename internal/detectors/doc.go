// Package detectors holds the structural patterns keyhound extracts from
// search snippets. A pattern is a literal prefix followed by a body of a
// fixed alphabet and bounded length; matches are post-checked by the
// validators in internal/validate before they become candidates.
package detectors
