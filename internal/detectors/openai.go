package detectors

import v "github.com/keyhound/keyhound/internal/validate"

const (
	OpenAIProjectKeyID        = "openai_project_key"
	OpenAIServiceAccountKeyID = "openai_svcacct_key"
)

func init() {
	register(Pattern{
		ID:       OpenAIProjectKeyID,
		Prefix:   "sk-proj-",
		Charset:  `A-Za-z0-9_\-`,
		MinBody:  40,
		MaxBody:  200,
		Validate: v.LooksLikeOpenAIProjectKey,
	})
	register(Pattern{
		ID:       OpenAIServiceAccountKeyID,
		Prefix:   "sk-svcacct-",
		Charset:  `A-Za-z0-9_\-`,
		MinBody:  40,
		MaxBody:  200,
		Validate: v.LooksLikeOpenAIServiceAccountKey,
	})
}
