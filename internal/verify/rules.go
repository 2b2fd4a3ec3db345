package verify

import (
	"strings"

	"github.com/keyhound/keyhound/internal/types"
)

// maxMessage bounds the provider message kept in an outcome.
const maxMessage = 200

// ProbeResponse is the part of a service answer classification looks at.
type ProbeResponse struct {
	StatusCode int
	ErrorType  string
	ErrorCode  string
	Message    string
}

func (r ProbeResponse) text() string {
	return strings.ToLower(r.Message + " " + r.ErrorType + " " + r.ErrorCode)
}

// Rule maps a response pattern to an outcome. Rules are evaluated in order
// and the first match wins.
type Rule struct {
	Name    string
	Match   func(ProbeResponse) bool
	Status  types.Status
	Subtype types.ErrorSubtype
}

func status(codes ...int) func(ProbeResponse) bool {
	return func(r ProbeResponse) bool {
		for _, c := range codes {
			if r.StatusCode == c {
				return true
			}
		}
		return false
	}
}

func statusBetween(lo, hi int) func(ProbeResponse) bool {
	return func(r ProbeResponse) bool { return r.StatusCode >= lo && r.StatusCode <= hi }
}

func mentions(frags ...string) func(ProbeResponse) bool {
	return func(r ProbeResponse) bool {
		t := r.text()
		for _, f := range frags {
			if strings.Contains(t, f) {
				return true
			}
		}
		return false
	}
}

func all(ms ...func(ProbeResponse) bool) func(ProbeResponse) bool {
	return func(r ProbeResponse) bool {
		for _, m := range ms {
			if !m(r) {
				return false
			}
		}
		return true
	}
}

// keyNotRecognized are the messages the service uses when the key itself
// is unknown to it.
var keyNotRecognized = []string{
	"incorrect api key provided",
	"invalid api key provided",
	"you didn't provide an api key",
}

// DefaultRules is the classification table for OpenAI-style responses.
func DefaultRules() []Rule {
	v, inv := types.StatusValid, types.StatusInvalid
	return []Rule{
		{"success", statusBetween(200, 299), v, types.SubtypeNone},

		{"key not recognized", all(status(401), mentions(keyNotRecognized...)), inv, types.SubtypeKeyNotRecognized},
		{"other auth failure", status(401), v, types.SubtypeAuthIssue},

		{"model unavailable", all(status(400), mentions("model"), mentions("does not exist")), v, types.SubtypeModelUnavailable},
		{"bad request", status(400), v, types.SubtypeBadRequest},

		{"region restricted", all(status(403), mentions("country", "region", "territory")), v, types.SubtypeRegionRestricted},
		{"organization", all(status(403), mentions("organization")), v, types.SubtypeOrganization},
		{"billing required", all(status(403), mentions("billing")), v, types.SubtypeBilling},
		{"forbidden", status(403), v, types.SubtypeForbidden},

		{"model not found", all(status(404), mentions("model")), v, types.SubtypeModelUnavailable},
		{"not found", status(404), v, types.SubtypeNotFound},
		{"invalid parameters", status(422), v, types.SubtypeInvalidParameters},

		{"quota exceeded", all(status(429), mentions("quota", "insufficient_quota")), v, types.SubtypeQuotaExceeded},
		{"rate limited", status(429), v, types.SubtypeRateLimited},

		{"server error", statusBetween(500, 599), v, types.SubtypeServerError},

		// any other status: fall back to the message
		{"quota message", mentions("quota", "insufficient_quota"), v, types.SubtypeQuotaExceeded},
		{"rate limit message", mentions("rate limit"), v, types.SubtypeRateLimited},
		{"billing message", mentions("billing"), v, types.SubtypeBilling},
		{"usage limit message", mentions("usage limit"), v, types.SubtypeUsageLimit},
		{"account suspended", all(mentions("account"), mentions("deactivat", "suspend")), v, types.SubtypeAccountSuspended},
	}
}

// Classify returns the outcome of the first rule matching resp. A response
// no rule matches is still a service answer and is VALID/unknown.
func Classify(resp ProbeResponse, rules []Rule) (types.Status, types.ErrorSubtype) {
	for _, r := range rules {
		if r.Match != nil && r.Match(resp) {
			return r.Status, r.Subtype
		}
	}
	return types.StatusValid, types.SubtypeUnknown
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxMessage {
		return s
	}
	// keep valid UTF-8
	cut := maxMessage
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
