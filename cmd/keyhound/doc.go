// Package keyhound provides the command-line interface for keyhound. It
// wires the search, validate, shards, history and config subcommands to
// the internal engine.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/keyhound/keyhound/cmd/keyhound"
//	func main() { keyhound.Execute() }
package keyhound
