package validate

import "strings"

const (
	// Base62 is the alphanumeric alphabet.
	Base62 = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// URLSafe is base62 plus '-' and '_', the body alphabet of project keys.
	URLSafe = Base62 + "-_"
)

// LengthBetween returns true if len(s) is within [min,max]. A max <= 0
// means no upper bound.
func LengthBetween(s string, min, max int) bool {
	n := len(s)
	if n < min {
		return false
	}
	return max <= 0 || n <= max
}

// IsAlphabet returns true if all characters in s are in allowed set.
func IsAlphabet(s, allowed string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(allowed, rune(s[i])) {
			return false
		}
	}
	return true
}

// HasBody reports whether s is prefix followed by a body of [min,max]
// characters drawn from alphabet.
func HasBody(s, prefix, alphabet string, min, max int) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	tail := s[len(prefix):]
	return LengthBetween(tail, min, max) && IsAlphabet(tail, alphabet)
}

// LooksLikeOpenAIProjectKey checks the sk-proj- prefix and a url-safe body
// of at least 40 characters.
func LooksLikeOpenAIProjectKey(s string) bool {
	return HasBody(s, "sk-proj-", URLSafe, 40, 200)
}

// LooksLikeOpenAIServiceAccountKey checks the sk-svcacct- prefix.
func LooksLikeOpenAIServiceAccountKey(s string) bool {
	return HasBody(s, "sk-svcacct-", URLSafe, 40, 200)
}
