// Package parser reads playspec check suites.
//
// A suite is a YAML file (*.playspec.yaml) holding variables and a list of
// checks. A check is either:
//   - a UI check: a browser name and steps (open, click, fill, expectText,
//     expectVisible, waitUrl, waitTitle) run against a live page
//   - an API check: a request with expectations and captures
//
// Checks may declare tags, skip reasons, only, retries and dependencies on
// other checks in the same suite.
package parser
