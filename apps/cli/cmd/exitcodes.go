package cmd

// Exit codes for the playspec CLI
const (
	// ExitSuccess indicates all checks passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more checks failed or a latency threshold was breached
	ExitTestFailure = 1

	// ExitParseError indicates a suite file parsing error
	ExitParseError = 2

	// ExitConfigError indicates a missing setting, settings file or unsupported browser
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
