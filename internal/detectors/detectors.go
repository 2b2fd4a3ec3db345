package detectors

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Pattern is one secret shape: Prefix + [Charset]{MinBody,MaxBody}.
type Pattern struct {
	ID      string
	Prefix  string
	Charset string // regexp character class body, e.g. `A-Za-z0-9_-`
	MinBody int
	MaxBody int
	// Validate post-checks a regex match; nil accepts every match.
	Validate func(string) bool

	re *regexp.Regexp
}

// Compile builds the pattern's regexp. It is called for the built-in
// patterns at init time and must be called for custom ones.
func (p Pattern) Compile() (Pattern, error) {
	if p.Prefix == "" || p.Charset == "" || p.MinBody <= 0 {
		return p, fmt.Errorf("pattern %q: prefix, charset and min body are required", p.ID)
	}
	if p.MaxBody > 0 && p.MaxBody < p.MinBody {
		return p, fmt.Errorf("pattern %q: max body %d < min body %d", p.ID, p.MaxBody, p.MinBody)
	}
	// The match runs to the end of the charset run; MaxBody is enforced
	// on the whole run in Extract so long runs are dropped, not cut.
	re, err := regexp.Compile(regexp.QuoteMeta(p.Prefix) + "[" + p.Charset + "]" + fmt.Sprintf("{%d,}", p.MinBody))
	if err != nil {
		return p, fmt.Errorf("pattern %q: %w", p.ID, err)
	}
	p.re = re
	return p, nil
}

// Compiled reports whether Compile has been called.
func (p Pattern) Compiled() bool { return p.re != nil }

// SearchTerm is the literal the search provider is queried with.
func (p Pattern) SearchTerm() string { return p.Prefix }

// Extract returns every match of p in text, in order of appearance.
// Repeated values are returned once per appearance. A run of body
// characters longer than MaxBody yields nothing.
func (p Pattern) Extract(text string) []string {
	if p.re == nil || text == "" || !strings.Contains(text, p.Prefix) {
		return nil
	}
	var out []string
	for _, m := range p.re.FindAllString(text, -1) {
		if p.MaxBody > 0 && len(m)-len(p.Prefix) > p.MaxBody {
			continue
		}
		if p.Validate != nil && !p.Validate(m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

var registry = map[string]Pattern{}

func register(p Pattern) {
	c, err := p.Compile()
	if err != nil {
		panic(err)
	}
	registry[c.ID] = c
}

// ByID returns a built-in pattern.
func ByID(id string) (Pattern, bool) {
	p, ok := registry[strings.TrimSpace(id)]
	return p, ok
}

// IDs lists the built-in pattern ids.
func IDs() []string {
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Default is the pattern used when none is configured.
func Default() Pattern {
	p, _ := ByID(OpenAIProjectKeyID)
	return p
}

// Extract applies the default pattern to text.
func Extract(text string) []string {
	return Default().Extract(text)
}
