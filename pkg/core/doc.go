// Package core provides a small, stable facade over keyhound's internal
// engine for external integrations. It re-exports a narrow API surface so
// other tools can depend on a stable import path without reaching into
// internal packages.
//
// Example:
//
//	provider, err := core.NewGitHubProvider(ctx, os.Getenv("GITHUB_TOKEN"))
//	if err != nil { /* handle */ }
//	res, err := core.Discover(ctx, provider, core.DefaultDiscoverConfig())
//	if err != nil { /* partial result is still usable */ }
//	outcomes := core.Validate(ctx, core.NewOpenAIChecker(), core.Values(res.Candidates))
//	_ = core.MarshalOutcomes(os.Stdout, outcomes.Outcomes)
package core
