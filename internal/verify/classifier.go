package verify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/keyhound/keyhound/internal/logging"
	"github.com/keyhound/keyhound/internal/search"
	"github.com/keyhound/keyhound/internal/types"
)

// Config controls retries of indeterminate probes.
type Config struct {
	// MaxAttempts is the attempt ceiling for one candidate (default 3).
	MaxAttempts int
	// Backoff spaces attempts after a transport failure.
	Backoff search.Backoff
	// CacheTTL bounds how long a terminal outcome is reused. Zero keeps
	// outcomes for the life of the classifier.
	CacheTTL time.Duration
	// Rules overrides DefaultRules.
	Rules []Rule
}

// DefaultConfig retries twice, one and then two seconds apart.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, Backoff: search.Backoff{Base: time.Second, Max: 10 * time.Second}}
}

// Classifier runs the per-candidate state machine
// PENDING -> VALID | INVALID | INDETERMINATE -> ... -> INDETERMINATE-FAILED.
// Terminal outcomes are cached by value so a key is never probed twice.
type Classifier struct {
	prober Prober
	cfg    Config
	rules  []Rule
	cache  *ttlcache.Cache[string, types.ValidationOutcome]
	log    *zap.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// NewClassifier returns a classifier using p for probes.
func NewClassifier(p Prober, cfg Config, log *zap.Logger) *Classifier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{
		prober: p,
		cfg:    cfg,
		rules:  rules,
		cache:  ttlcache.New[string, types.ValidationOutcome](ttlcache.WithTTL[string, types.ValidationOutcome](ttl)),
		log:    log,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Normalize trims whitespace and an optional "Bearer " prefix.
func Normalize(value string) string {
	v := strings.TrimSpace(value)
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	return v
}

// Validate classifies value. It always returns an outcome; when ctx is
// cancelled between attempts the outcome stays INDETERMINATE and is not
// cached.
func (c *Classifier) Validate(ctx context.Context, value string) types.ValidationOutcome {
	value = Normalize(value)
	if it := c.cache.Get(value); it != nil {
		o := it.Value()
		o.Cached = true
		return o
	}

	out := types.ValidationOutcome{CandidateValue: value, Status: types.StatusPending}
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return c.interrupted(out)
		}
		out.AttemptCount = attempt
		resp, err := c.prober.Probe(ctx, value)
		out.Timestamp = c.now().UTC()
		if err != nil {
			if ctx.Err() != nil {
				return c.interrupted(out)
			}
			out.Status = types.StatusIndeterminate
			out.ErrorSubtype = types.SubtypeConnection
			var te *TransportError
			if errors.As(err, &te) {
				out.ErrorSubtype = te.Kind
			}
			out.HTTPStatusCode = resp.StatusCode
			out.Message = truncate(err.Error())
			c.log.Warn("probe failed",
				logging.Secret("key", value),
				zap.Int("attempt", attempt),
				zap.String("kind", string(out.ErrorSubtype)),
				zap.Error(err))
			if attempt < c.cfg.MaxAttempts {
				if err := c.sleep(ctx, c.cfg.Backoff.Delay(attempt-1)); err != nil {
					return c.interrupted(out)
				}
			}
			continue
		}
		out.Status, out.ErrorSubtype = Classify(resp, c.rules)
		out.HTTPStatusCode = resp.StatusCode
		out.Message = truncate(resp.Message)
		break
	}
	if out.Status == types.StatusIndeterminate {
		out.Status = types.StatusIndeterminateFailed
	}

	c.log.Info("key classified",
		logging.Secret("key", value),
		zap.String("status", string(out.Status)),
		zap.String("subtype", string(out.ErrorSubtype)),
		zap.Int("http_status", out.HTTPStatusCode),
		zap.Int("attempts", out.AttemptCount))
	if out.Status.Terminal() {
		c.cache.Set(value, out, ttlcache.DefaultTTL)
	}
	return out
}

func (c *Classifier) interrupted(out types.ValidationOutcome) types.ValidationOutcome {
	out.Status = types.StatusIndeterminate
	if out.Message == "" {
		out.Message = "interrupted"
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = c.now().UTC()
	}
	return out
}

// Cached returns the cached terminal outcome for value, if any.
func (c *Classifier) Cached(value string) (types.ValidationOutcome, bool) {
	it := c.cache.Get(Normalize(value))
	if it == nil {
		return types.ValidationOutcome{}, false
	}
	return it.Value(), true
}

// Remember seeds the cache with a terminal outcome from an earlier run.
// Non-terminal outcomes are ignored.
func (c *Classifier) Remember(o types.ValidationOutcome) {
	if o.Status.Terminal() && o.CandidateValue != "" {
		o.Cached = false
		c.cache.Set(Normalize(o.CandidateValue), o, ttlcache.DefaultTTL)
	}
}
