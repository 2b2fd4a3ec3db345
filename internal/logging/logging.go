// Package logging builds the zap loggers used across keyhound and provides
// fields that never put a raw secret value into a log line.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	Level  string    // debug | info | warn | error
	Format string    // console | json
	Writer io.Writer // defaults to stderr
}

// New creates a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	enc, err := newEncoder(opts.Format)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core), nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	switch strings.ToLower(format) {
	case "", "console":
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg), nil
	case "json":
		return zapcore.NewJSONEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want console or json)", format)
	}
}

// Mask keeps the first eight and last four characters of a secret.
func Mask(s string) string {
	if len(s) <= 12 {
		return "********"
	}
	return s[:8] + "…" + s[len(s)-4:]
}

// Fingerprint is a stable, non-reversible identifier for a secret value.
func Fingerprint(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}

// Secret logs a secret value as its mask and fingerprint.
func Secret(key, value string) zap.Field {
	return zap.Object(key, secretField(value))
}

type secretField string

func (s secretField) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("masked", Mask(string(s)))
	enc.AddString("fp", Fingerprint(string(s)))
	return nil
}

// Shard returns the field every shard-scoped log line carries.
func Shard(id string) zap.Field {
	return zap.String("shard", id)
}
