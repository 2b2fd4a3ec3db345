package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keyhound/keyhound/internal/engine"
)

// checkpointVersion guards against loading a file written by an
// incompatible layout.
const checkpointVersion = 1

// ErrNoCheckpoint is returned by LoadCheckpoint when the file is absent.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Checkpoint is the on-disk form of a partially or fully finished discovery.
type Checkpoint struct {
	Version int                   `json:"version"`
	SavedAt time.Time             `json:"saved_at"`
	Result  engine.DiscoverResult `json:"result"`
}

// DefaultPath returns the checkpoint location for an output prefix.
func DefaultPath(dir, prefix string) string {
	return filepath.Join(dir, "."+prefix+"_checkpoint.json")
}

// SaveCheckpoint writes result atomically: a temp file in the same
// directory is renamed over path, so a crash never leaves half a file.
func SaveCheckpoint(path string, result engine.DiscoverResult) error {
	cp := Checkpoint{Version: checkpointVersion, SavedAt: time.Now().UTC(), Result: result}
	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("checkpoint: %w", err)
	}
	// CreateTemp already uses 0600; candidates carry raw values.
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint.
func LoadCheckpoint(path string) (engine.DiscoverResult, error) {
	var cp Checkpoint
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return engine.DiscoverResult{}, fmt.Errorf("%w: %s", ErrNoCheckpoint, path)
		}
		return engine.DiscoverResult{}, err
	}
	if err := json.Unmarshal(b, &cp); err != nil {
		return engine.DiscoverResult{}, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	if cp.Version != checkpointVersion {
		return engine.DiscoverResult{}, fmt.Errorf("checkpoint %s: unsupported version %d", path, cp.Version)
	}
	return cp.Result, nil
}

// Remove deletes the checkpoint after a run finished cleanly. A missing
// file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
