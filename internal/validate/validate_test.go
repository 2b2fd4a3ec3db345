package validate

import (
	"strings"
	"testing"
)

func TestLengthBetween(t *testing.T) {
	if !LengthBetween("abcd", 2, 5) {
		t.Fatal("expected true for length between")
	}
	if LengthBetween("a", 2, 5) {
		t.Fatal("expected false for too short")
	}
	if LengthBetween("abcdef", 2, 5) {
		t.Fatal("expected false for too long")
	}
	if !LengthBetween(strings.Repeat("a", 500), 2, 0) {
		t.Fatal("expected no upper bound when max is 0")
	}
}

func TestIsAlphabet(t *testing.T) {
	if !IsAlphabet("abcXYZ09", Base62) {
		t.Fatal("expected alnum to be allowed")
	}
	if IsAlphabet("abc-", "abc") {
		t.Fatal("expected false when char not allowed")
	}
	if IsAlphabet("", Base62) {
		t.Fatal("expected false for empty input")
	}
}

func TestLooksLikeOpenAIProjectKey(t *testing.T) {
	good := "sk-proj-" + strings.Repeat("aB3_-", 10)
	if !LooksLikeOpenAIProjectKey(good) {
		t.Fatalf("expected valid project key: %s", good)
	}
	for _, bad := range []string{
		"sk-proj-short",
		"sk-" + strings.Repeat("a", 48),
		"sk-proj-" + strings.Repeat("a", 39) + "!",
	} {
		if LooksLikeOpenAIProjectKey(bad) {
			t.Fatalf("expected invalid project key: %s", bad)
		}
	}
}

func TestLooksLikeOpenAIServiceAccountKey(t *testing.T) {
	if !LooksLikeOpenAIServiceAccountKey("sk-svcacct-" + strings.Repeat("Z9", 25)) {
		t.Fatal("expected valid service account key")
	}
	if LooksLikeOpenAIServiceAccountKey("sk-proj-" + strings.Repeat("Z9", 25)) {
		t.Fatal("expected project key to be rejected")
	}
}
