// Package audit keeps an append-only JSONL ledger of discovery and
// validation runs. Records carry counts, masked values and fingerprints,
// never the candidate strings themselves.
package audit
