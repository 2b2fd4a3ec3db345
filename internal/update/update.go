package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	semver3 "github.com/blang/semver"
	semver "github.com/blang/semver/v4"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

// Slug is the GitHub repository releases are published under.
const Slug = "keyhound/keyhound"

const (
	cacheFileName = "update.json"
	checkInterval = 24 * time.Hour
)

// latestURL is a variable so tests can point it at a local server.
var latestURL = "https://api.github.com/repos/" + Slug + "/releases/latest"

type cache struct {
	LastChecked time.Time `json:"last_checked"`
	Latest      string    `json:"latest"`
}

func configDir() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "keyhound")
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "keyhound")
}

func loadCache() (cache, error) {
	var c cache
	dir := configDir()
	if dir == "" {
		return c, errors.New("no config dir")
	}
	b, err := os.ReadFile(filepath.Join(dir, cacheFileName))
	if err != nil {
		return c, err
	}
	_ = json.Unmarshal(b, &c)
	return c, nil
}

func saveCache(c cache) {
	dir := configDir()
	if dir == "" {
		return
	}
	_ = os.MkdirAll(dir, 0o755)
	b, _ := json.MarshalIndent(c, "", "  ")
	_ = os.WriteFile(filepath.Join(dir, cacheFileName), b, 0o644)
}

func latestVersionOnline(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, latestURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "keyhound-updater")
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release lookup: %s", resp.Status)
	}
	var obj struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return "", err
	}
	v := obj.TagName
	if v == "" {
		v = obj.Name
	}
	return v, nil
}

// Check returns (latest, isNewer, error). The lookup result is cached for
// a day and the check is skipped entirely in CI or when noNetwork is set.
func Check(ctx context.Context, current string, noNetwork bool) (string, bool, error) {
	if os.Getenv("CI") != "" || noNetwork {
		return "", false, nil
	}
	current = normalize(current)
	c, _ := loadCache()
	latest := c.Latest
	if time.Since(c.LastChecked) > checkInterval || latest == "" {
		if v, err := latestVersionOnline(ctx); err == nil {
			latest = normalize(v)
			c.Latest = latest
			c.LastChecked = time.Now()
			saveCache(c)
		}
	}
	if latest == "" || current == "" {
		return latest, false, nil
	}
	return latest, compare(latest, current) > 0, nil
}

// SelfUpdate replaces the running binary with the latest release when it
// is newer than current. It returns the version now installed.
func SelfUpdate(current string) (string, error) {
	ver := parse(current)
	// go-github-selfupdate still speaks the v3 semver API.
	latest, err := selfupdate.UpdateSelf(semver3.MustParse(ver.String()), Slug)
	if err != nil {
		return "", err
	}
	return latest.Version.String(), nil
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	return strings.TrimPrefix(v, "v")
}

// parse is tolerant of a leading "v" and missing components; anything
// unparseable (a dev build, a commit hash) is treated as 0.0.0.
func parse(v string) semver.Version {
	ver, err := semver.ParseTolerant(normalize(v))
	if err != nil {
		return semver.MustParse("0.0.0")
	}
	return ver
}

// compare returns 1 if a>b, -1 if a<b, 0 if equal.
func compare(a, b string) int {
	return parse(a).Compare(parse(b))
}
