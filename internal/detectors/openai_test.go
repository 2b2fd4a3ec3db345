package detectors

import (
	"strings"
	"testing"
)

func TestOpenAIProjectKey_Extract(t *testing.T) {
	k1 := "sk-proj-" + strings.Repeat("Ab3_", 12)
	k2 := "sk-proj-" + strings.Repeat("zZ9-", 11)
	text := "OPENAI_API_KEY=" + k1 + "\nclient = OpenAI(api_key=\"" + k2 + "\")\n# again " + k1
	got := Extract(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d: %v", len(got), got)
	}
	if got[0] != k1 || got[1] != k2 || got[2] != k1 {
		t.Fatalf("unexpected matches %v", got)
	}
}

func TestOpenAIProjectKey_IgnoresShortBodies(t *testing.T) {
	if got := Extract("key: sk-proj-abc123"); len(got) != 0 {
		t.Fatalf("expected no matches for short body, got %v", got)
	}
	if got := Extract(""); got != nil {
		t.Fatalf("expected nil for empty text, got %v", got)
	}
}

func TestOpenAIProjectKey_StopsAtForeignCharacter(t *testing.T) {
	body := strings.Repeat("a", 45)
	got := Extract(`"sk-proj-` + body + `"`)
	if len(got) != 1 || got[0] != "sk-proj-"+body {
		t.Fatalf("expected quoted key extracted without quotes, got %v", got)
	}
}

func TestOpenAIProjectKey_RejectsOverlongBody(t *testing.T) {
	atMax := "sk-proj-" + strings.Repeat("b", 200)
	if got := Extract("k=" + atMax + "\n"); len(got) != 1 || got[0] != atMax {
		t.Fatalf("expected 200-char body accepted, got %v", got)
	}
	tooLong := "sk-proj-" + strings.Repeat("b", 201)
	if got := Extract("k=" + tooLong + "\n"); len(got) != 0 {
		t.Fatalf("expected overlong body rejected, got %v", got)
	}
	k := "sk-proj-" + strings.Repeat("Ab3_", 12)
	if got := Extract(tooLong + " " + k); len(got) != 1 || got[0] != k {
		t.Fatalf("expected only the well-formed key, got %v", got)
	}
}

func TestRegistry(t *testing.T) {
	ids := IDs()
	if len(ids) != 2 || ids[0] != OpenAIProjectKeyID || ids[1] != OpenAIServiceAccountKeyID {
		t.Fatalf("unexpected ids %v", ids)
	}
	p, ok := ByID(OpenAIServiceAccountKeyID)
	if !ok {
		t.Fatal("expected service account pattern")
	}
	if p.SearchTerm() != "sk-svcacct-" {
		t.Fatalf("unexpected search term %q", p.SearchTerm())
	}
	key := "sk-svcacct-" + strings.Repeat("Q", 48)
	if got := p.Extract("x=" + key); len(got) != 1 || got[0] != key {
		t.Fatalf("expected service account key, got %v", got)
	}
}

func TestPatternCompile_Rejects(t *testing.T) {
	if _, err := (Pattern{ID: "x", Prefix: "p-", Charset: "a-z"}).Compile(); err == nil {
		t.Fatal("expected error for missing min body")
	}
	if _, err := (Pattern{ID: "x", Prefix: "p-", Charset: "a-z", MinBody: 10, MaxBody: 5}).Compile(); err == nil {
		t.Fatal("expected error for max < min")
	}
}
