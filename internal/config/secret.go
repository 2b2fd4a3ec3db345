package config

import (
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns redacted value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

// ErrNoToken is returned when no search provider token can be found.
var ErrNoToken = errors.New("no GitHub token: set --github-token, GITHUB_TOKEN or run 'gh auth login'")

// ghToken asks the GitHub CLI for its token. Replaced in tests.
var ghToken = func() (string, error) {
	out, err := exec.Command("gh", "auth", "token").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ResolveGitHubToken picks the search token: explicit value, then
// GITHUB_TOKEN, then GH_TOKEN, then `gh auth token`.
func ResolveGitHubToken(explicit string) (Secret, error) {
	if t := strings.TrimSpace(explicit); t != "" {
		return Secret(t), nil
	}
	for _, env := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if t := strings.TrimSpace(os.Getenv(env)); t != "" {
			return Secret(t), nil
		}
	}
	if t, err := ghToken(); err == nil && t != "" {
		return Secret(t), nil
	}
	return "", ErrNoToken
}
