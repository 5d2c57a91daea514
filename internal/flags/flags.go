package flags

// Package flags defines canonical CLI flag names shared across the CLI and
// the config overlay. Keeping these as constants avoids drift between Cobra
// flag wiring and the code that checks whether a flag was explicitly set.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().BoolVar(&dryRun, flags.FlagDryRun, false, "...")
//	if cmd.Flags().Changed(flags.FlagConcurrency) { ... }
const (
	// Input
	FlagConfig = "config"
	FlagOrg    = "org"
	FlagRepos  = "repos"

	// Behavior
	FlagDryRun = "dry-run"

	// Output
	FlagOutputDir = "output-dir"
	FlagNoConsole = "no-console"

	// Logging
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
	FlagVerbose   = "verbose"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
)
