// Package update checks GitHub releases for a newer keyhound and performs
// in-place self updates.
package update
