package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/keyhound/keyhound/internal/shards"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration shape for keyhound.
// Every field is optional; nil means "not set here".
type FileConfig struct {
	// Discovery
	Term        *string        `yaml:"term"`
	Detector    *string        `yaml:"detector"`
	Dimensions  []string       `yaml:"dimensions"`
	Languages   []string       `yaml:"languages"`
	Extensions  []string       `yaml:"extensions"`
	Combos      []shards.Combo `yaml:"combos"`
	Filenames   []string       `yaml:"filenames"`
	Paths       []string       `yaml:"paths"`
	MaxShards   *int           `yaml:"max_shards"`
	PerPage     *int           `yaml:"per_page"`
	MaxPages    *int           `yaml:"max_pages"`
	Delay       *string        `yaml:"delay"`
	ShardDelay  *string        `yaml:"shard_delay"`
	Workers     *int           `yaml:"workers"`
	MaxRetries  *int           `yaml:"max_retries"`
	BackoffBase *string        `yaml:"backoff_base"`
	BackoffMax  *string        `yaml:"backoff_max"`
	RequestsPM  *int           `yaml:"requests_per_minute"`
	Exclude     *string        `yaml:"exclude"`

	// Validation
	Validate *ValidateConfig `yaml:"validate"`

	// Output
	OutputDir *string `yaml:"output_dir"`
	NoColor   *bool   `yaml:"no_color"`
	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`
}

// ValidateConfig holds the validation section of the config file.
type ValidateConfig struct {
	Concurrency *int    `yaml:"concurrency"`
	Delay       *string `yaml:"delay"`
	MaxAttempts *int    `yaml:"max_attempts"`
	BackoffBase *string `yaml:"backoff_base"`
	BackoffMax  *string `yaml:"backoff_max"`
	BaseURL     *string `yaml:"base_url"`
	Model       *string `yaml:"model"`
	Timeout     *string `yaml:"timeout"`
}

// LoadFile reads a YAML config file from the provided path and checks it.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Check(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadLocal searches for a repo-local config file in the given root.
// It supports .keyhound.yml/.yaml and keyhound.yml/.yaml.
func LoadLocal(root string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range []string{".keyhound.yml", ".keyhound.yaml", "keyhound.yml", "keyhound.yaml"} {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, ErrNoConfig
}

// LoadGlobal loads the global config file from XDG base directory or ~/.config.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return cfg, ErrNoConfig
	}
	p := filepath.Join(base, "keyhound", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, ErrNoConfig
}

// ErrNoConfig means no config file exists at the searched location.
var ErrNoConfig = errors.New("no config file")

// Check rejects values that can never work: unknown dimensions, negative
// bounds and unparsable durations.
func (fc FileConfig) Check() error {
	if _, err := shards.ParseDimensions(fc.Dimensions); err != nil {
		return err
	}
	for name, v := range map[string]*int{
		"max_shards": fc.MaxShards, "per_page": fc.PerPage, "max_pages": fc.MaxPages,
		"workers": fc.Workers, "max_retries": fc.MaxRetries, "requests_per_minute": fc.RequestsPM,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative (got %d)", name, *v)
		}
	}
	durs := map[string]*string{
		"delay": fc.Delay, "shard_delay": fc.ShardDelay,
		"backoff_base": fc.BackoffBase, "backoff_max": fc.BackoffMax,
	}
	if fc.Validate != nil {
		durs["validate.delay"] = fc.Validate.Delay
		durs["validate.backoff_base"] = fc.Validate.BackoffBase
		durs["validate.backoff_max"] = fc.Validate.BackoffMax
		durs["validate.timeout"] = fc.Validate.Timeout
		if c := fc.Validate.Concurrency; c != nil && *c < 0 {
			return fmt.Errorf("validate.concurrency must not be negative (got %d)", *c)
		}
		if a := fc.Validate.MaxAttempts; a != nil && *a < 0 {
			return fmt.Errorf("validate.max_attempts must not be negative (got %d)", *a)
		}
	}
	for name, v := range durs {
		if v == nil {
			continue
		}
		if _, err := ParseDuration(*v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// ParseDuration accepts Go durations ("2s", "1m30s") and bare seconds ("2", "0.5").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		d, err = time.ParseDuration(s + "s")
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
	}
	if d < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", s)
	}
	return d, nil
}

// ValidateSection returns the validation section, never nil.
func (fc FileConfig) ValidateSection() ValidateConfig {
	if fc.Validate == nil {
		return ValidateConfig{}
	}
	return *fc.Validate
}
