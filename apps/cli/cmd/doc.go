// Package cmd implements the playspec CLI commands using Cobra.
//
// Available commands:
//   - run: Execute UI and API checks from playspec suites
//   - validate: Check suite syntax without executing
//   - list: Display all checks defined in suites
//   - config: List resolved settings or get one, with the tier it came from
//   - install: Download the Playwright driver and browser engines
//   - history: Show recorded runs and flaky checks
//   - init: Create a new playspec project with example files
//   - version: Show playspec version information
//
// Flags fall back to PLAYSPEC_* environment variables. Settings passed with
// --set take precedence over environment variables and the settings file.
package cmd
