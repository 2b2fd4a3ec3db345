package verify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keyhound/keyhound/internal/types"
)

func TestClassify_DefaultRules(t *testing.T) {
	cases := []struct {
		name    string
		resp    ProbeResponse
		status  types.Status
		subtype types.ErrorSubtype
	}{
		{"incorrect key", ProbeResponse{StatusCode: 401, Message: "Incorrect API key provided: sk-proj-****abcd. You can find your API key at https://platform.openai.com/account/api-keys.", ErrorType: "invalid_request_error", ErrorCode: "invalid_api_key"}, types.StatusInvalid, types.SubtypeKeyNotRecognized},
		{"invalid key", ProbeResponse{StatusCode: 401, Message: "Invalid API key provided"}, types.StatusInvalid, types.SubtypeKeyNotRecognized},
		{"missing key", ProbeResponse{StatusCode: 401, Message: "You didn't provide an API key."}, types.StatusInvalid, types.SubtypeKeyNotRecognized},
		{"other 401", ProbeResponse{StatusCode: 401, Message: "Your authentication token has expired."}, types.StatusValid, types.SubtypeAuthIssue},
		{"rate limited", ProbeResponse{StatusCode: 429, Message: "Rate limit reached for requests"}, types.StatusValid, types.SubtypeRateLimited},
		{"bare 429", ProbeResponse{StatusCode: 429}, types.StatusValid, types.SubtypeRateLimited},
		{"quota", ProbeResponse{StatusCode: 429, Message: "You exceeded your current quota, please check your plan and billing details.", ErrorCode: "insufficient_quota"}, types.StatusValid, types.SubtypeQuotaExceeded},
		{"success", ProbeResponse{StatusCode: 200, Message: "ok: Hello"}, types.StatusValid, types.SubtypeNone},
		{"billing", ProbeResponse{StatusCode: 403, Message: "Billing hard limit has been reached"}, types.StatusValid, types.SubtypeBilling},
		{"region", ProbeResponse{StatusCode: 403, Message: "Country, region, or territory not supported", ErrorCode: "unsupported_country_region_territory"}, types.StatusValid, types.SubtypeRegionRestricted},
		{"organization", ProbeResponse{StatusCode: 403, Message: "You are not allowed to access this organization"}, types.StatusValid, types.SubtypeOrganization},
		{"forbidden", ProbeResponse{StatusCode: 403, Message: "nope"}, types.StatusValid, types.SubtypeForbidden},
		{"model missing", ProbeResponse{StatusCode: 400, Message: "The model `gpt-4o-mini` does not exist"}, types.StatusValid, types.SubtypeModelUnavailable},
		{"bad request", ProbeResponse{StatusCode: 400, Message: "max_tokens is too large"}, types.StatusValid, types.SubtypeBadRequest},
		{"model not found", ProbeResponse{StatusCode: 404, Message: "The model does not exist or you do not have access to it."}, types.StatusValid, types.SubtypeModelUnavailable},
		{"not found", ProbeResponse{StatusCode: 404, Message: "Unknown url"}, types.StatusValid, types.SubtypeNotFound},
		{"unprocessable", ProbeResponse{StatusCode: 422}, types.StatusValid, types.SubtypeInvalidParameters},
		{"server error", ProbeResponse{StatusCode: 503, Message: "The engine is currently overloaded"}, types.StatusValid, types.SubtypeServerError},
		{"suspended", ProbeResponse{StatusCode: 409, Message: "This account has been deactivated"}, types.StatusValid, types.SubtypeAccountSuspended},
		{"usage limit", ProbeResponse{StatusCode: 409, Message: "Usage limit reached for this key"}, types.StatusValid, types.SubtypeUsageLimit},
		{"unknown", ProbeResponse{StatusCode: 418, Message: "teapot"}, types.StatusValid, types.SubtypeUnknown},
	}
	rules := DefaultRules()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, sub := Classify(tc.resp, rules)
			assert.Equal(t, tc.status, st)
			assert.Equal(t, tc.subtype, sub)
		})
	}
}

func TestClassify_OnlyUnrecognizedKeyIsInvalid(t *testing.T) {
	for code := 100; code < 600; code++ {
		st, _ := Classify(ProbeResponse{StatusCode: code, Message: "something went wrong"}, DefaultRules())
		assert.Equal(t, types.StatusValid, st, "status %d", code)
	}
}

func TestClassify_CustomRulesFirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Name: "teapot", Match: status(418), Status: types.StatusInvalid, Subtype: types.SubtypeUnknown},
		{Name: "never", Match: status(418), Status: types.StatusValid, Subtype: types.SubtypeNone},
	}
	st, sub := Classify(ProbeResponse{StatusCode: 418}, rules)
	assert.Equal(t, types.StatusInvalid, st)
	assert.Equal(t, types.SubtypeUnknown, sub)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short \n"))
	long := strings.Repeat("é", 150) // 300 bytes
	got := truncate(long)
	assert.LessOrEqual(t, len(got), maxMessage)
	assert.True(t, strings.HasPrefix(long, got))
	assert.Equal(t, 0, len(got)%2, "cut must fall on a rune boundary")
}
