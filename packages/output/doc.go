// Package output provides formatters for displaying check results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//   - HTML: A single page report with failure screenshots embedded
//
// Attachments is the report sink failure diagnostics write to. Formatters
// given the same Attachments reference or embed the files per check.
package output
