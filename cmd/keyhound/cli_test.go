package keyhound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhound/keyhound/internal/audit"
	"github.com/keyhound/keyhound/internal/config"
	"github.com/keyhound/keyhound/internal/report"
	"github.com/keyhound/keyhound/internal/types"
)

var liveKey = "sk-proj-" + strings.Repeat("L1ve_", 9)

// resetFlags restores every flag of the tree to its default so test
// invocations do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CI", "1")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func fakeGitHub(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/search/code", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func codeSearchBody(key string) string {
	return `{"total_count": 1, "items": [{
		"path": "config/.env",
		"html_url": "https://github.com/octo/app/blob/main/config/.env",
		"repository": {"full_name": "octo/app"},
		"text_matches": [{"fragment": "OPENAI_API_KEY=` + key + `"}]
	}]}`
}

func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer "+liveKey {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi"}}]}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func searchArgs(srvURL, dir string, extra ...string) []string {
	args := []string{
		"search",
		"--github-api-url", srvURL,
		"--github-token", "test-token",
		"--output-dir", dir,
		"--prefix", "run",
		"--dimensions", "language",
		"--languages", "python",
		"--delay", "0s",
		"--shard-delay", "0s",
		"--no-color",
	}
	return append(args, extra...)
}

func TestShards_JSON(t *testing.T) {
	out, _, err := execute(t, "shards", "--json", "--dimensions", "language", "--languages", "python,go")
	require.NoError(t, err)
	var defs []types.ShardDefinition
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	require.Len(t, defs, 3)
	assert.Equal(t, "sk-proj- language:python", defs[0].Query)
	assert.Equal(t, "basic", defs[2].ID)
}

func TestShards_Table(t *testing.T) {
	out, _, err := execute(t, "shards", "--no-color", "--dimensions", "combo", "--combos", "java+properties")
	require.NoError(t, err)
	assert.Contains(t, out, "Total shards: 2")
	assert.Contains(t, out, "sk-proj- language:java extension:properties")
}

func TestShards_RejectsUnknownDimension(t *testing.T) {
	_, _, err := execute(t, "shards", "--dimensions", "owner")
	assert.Error(t, err)
}

func TestSearch_WritesArtifacts(t *testing.T) {
	gh, calls := fakeGitHub(t, http.StatusOK, codeSearchBody(liveKey))
	dir := t.TempDir()

	out, _, err := execute(t, searchArgs(gh.URL, dir)...)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "one page per shard")
	assert.Contains(t, out, "Unique candidates: 1")
	assert.NotContains(t, out, liveKey, "keys are masked on the terminal by default")

	keys, err := report.LoadKeys(filepath.Join(dir, "run_keys.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{liveKey}, keys)

	res, err := report.LoadDiscovery(filepath.Join(dir, "run.json"))
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "language:python", res.Candidates[0].FirstSeenShard)
	assert.Equal(t, 2, res.Candidates[0].OccurrenceCount)

	_, err = os.Stat(filepath.Join(dir, ".keyhound_checkpoint.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "a finished run removes its checkpoint")

	hist, err := audit.NewAuditLog(dir).LoadHistory()
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, audit.KindDiscover, hist[0].Kind)
}

func TestSearch_AuthFailureAbortsButWritesResults(t *testing.T) {
	gh, _ := fakeGitHub(t, http.StatusUnauthorized, `{"message":"Bad credentials"}`)
	dir := t.TempDir()

	out, _, err := execute(t, searchArgs(gh.URL, dir)...)
	require.Error(t, err)
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.code)
	assert.Contains(t, out, "--resume")

	res, err := report.LoadDiscovery(filepath.Join(dir, "run.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Aborted)
	assert.Contains(t, res.Pending, "basic")

	_, err = os.Stat(filepath.Join(dir, ".keyhound_checkpoint.json"))
	assert.NoError(t, err, "an aborted run keeps its checkpoint")
}

func TestSearch_ValidateAndSARIF(t *testing.T) {
	gh, _ := fakeGitHub(t, http.StatusOK, codeSearchBody(liveKey))
	oa := fakeOpenAI(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "keyhound.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("validate:\n  base_url: "+oa.URL+"\n  delay: 0s\n"), 0o600))
	sarif := filepath.Join(dir, "out.sarif")

	out, _, err := execute(t, searchArgs(gh.URL, dir, "--config", cfgPath, "--validate", "--sarif", sarif)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: 1")

	valid, err := report.LoadKeys(filepath.Join(dir, "run_valid.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{liveKey}, valid)

	b, err := os.ReadFile(sarif)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"version": "2.1.0"`)
	assert.NotContains(t, string(b), liveKey)
}

func TestSearch_BaselineHidesKnownCandidates(t *testing.T) {
	gh, _ := fakeGitHub(t, http.StatusOK, codeSearchBody(liveKey))
	dir := t.TempDir()
	base := filepath.Join(dir, "baseline.json")

	_, _, err := execute(t, searchArgs(gh.URL, dir, "--baseline", base, "--update-baseline")...)
	require.NoError(t, err)
	b, err := report.LoadBaseline(base)
	require.NoError(t, err)
	assert.Len(t, b.Items, 1)

	_, _, err = execute(t, searchArgs(gh.URL, dir, "--baseline", base, "--prefix", "second")...)
	require.NoError(t, err)
	hist, err := audit.NewAuditLog(dir).LoadHistory()
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 1, hist[0].Candidates)
	assert.Equal(t, 0, hist[0].NewCount)
}

func TestSearch_RequiresToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	t.Setenv("PATH", t.TempDir())
	_, _, err := execute(t, "search", "--output-dir", t.TempDir())
	assert.ErrorIs(t, err, config.ErrNoToken)
}

func TestValidate_SingleKey(t *testing.T) {
	oa := fakeOpenAI(t)
	dir := t.TempDir()

	out, _, err := execute(t, "validate", "--key", liveKey, "--base-url", oa.URL, "--delay", "0s",
		"--output-dir", dir, "--prefix", "one", "--fail-on-valid", "--no-color")
	require.Error(t, err)
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.code)
	assert.Contains(t, out, "Valid: 1")

	outcomes, err := report.LoadOutcomes(filepath.Join(dir, "one_results.jsonl"))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, types.StatusValid, outcomes[0].Status)
}

func TestValidate_FileWithStartLimitAndReuse(t *testing.T) {
	oa := fakeOpenAI(t)
	dir := t.TempDir()
	keys := filepath.Join(dir, "keys.txt")
	dead := "sk-proj-" + strings.Repeat("d", 48)
	require.NoError(t, os.WriteFile(keys, []byte("# found keys\n"+dead+"\n"+liveKey+"\nBearer "+dead+"\n"), 0o600))

	out, _, err := execute(t, "validate", "--file", keys, "--base-url", oa.URL, "--delay", "0s",
		"--output-dir", dir, "--prefix", "batch", "--no-color", "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Checked: 2 of 2", "the Bearer duplicate collapses")
	assert.Contains(t, out, "Valid: 1  Invalid: 1")

	out, _, err = execute(t, "validate", "--file", keys, "--base-url", "http://127.0.0.1:1", "--delay", "0s",
		"--output-dir", dir, "--prefix", "again", "--no-color", "--start", "1", "--limit", "1",
		"--reuse", filepath.Join(dir, "batch_results.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, out, "Checked: 1 of 1")
	assert.Contains(t, out, "cached", "the earlier outcome is reused without a probe")
}

func TestConfigInit_WritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".keyhound.yml")
	_, _, err := execute(t, "config", "init", "--output", path)
	require.NoError(t, err)

	fc, err := config.LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, fc.Term)
	assert.Equal(t, "sk-proj-", *fc.Term)
	assert.NotEmpty(t, fc.Combos)
	require.NotNil(t, fc.Validate)
	assert.Equal(t, "gpt-4o-mini", *fc.Validate.Model)

	_, _, err = execute(t, "config", "init", "--output", path)
	assert.Error(t, err, "refuses to overwrite without --force")
	_, _, err = execute(t, "config", "init", "--output", path, "--force", "--minimal")
	require.NoError(t, err)

	out, _, err := execute(t, "config", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	out, _, err := execute(t, "history", "--output-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")

	a := audit.NewAuditLog(dir)
	require.NoError(t, a.LogRun(audit.RunRecord{RunID: "0123456789abcdef", Kind: audit.KindDiscover, Candidates: 4, NewCount: 4, ShardsRun: 2, ShardsTotal: 3}))
	require.NoError(t, a.LogRun(audit.RunRecord{RunID: "fedcba9876543210", Kind: audit.KindValidate, Candidates: 4, Statuses: map[string]int{"VALID": 1, "INVALID": 3}}))

	out, _, err = execute(t, "history", "--output-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2/3 shards")
	assert.Contains(t, out, "1 valid, 3 invalid")
	assert.Contains(t, out, "fedcba98")

	_, _, err = execute(t, "history", "--output-dir", dir, "--delete", "0")
	require.NoError(t, err)
	out, _, err = execute(t, "history", "--output-dir", dir, "--json")
	require.NoError(t, err)
	var recs []audit.RunRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "0123456789abcdef", recs[0].RunID)
}

func TestVersionAndDetectors(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "keyhound "+version)

	out, _, err = execute(t, "detectors")
	require.NoError(t, err)
	assert.Contains(t, out, "openai_project_key")
}

func TestParseCombos(t *testing.T) {
	cs, err := parseCombos([]string{"python+py", " java + .properties "})
	require.NoError(t, err)
	assert.Equal(t, "java", cs[1].Language)
	assert.Equal(t, ".properties", cs[1].Extension)
	_, err = parseCombos([]string{"python"})
	assert.Error(t, err)
}
