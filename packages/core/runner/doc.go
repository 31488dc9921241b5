// Package runner invokes playspec check suites.
//
// Every check runs under its own owner id. UI checks go through the
// lifecycle controller: setup, steps, then teardown with the outcome the
// steps produced, so failed and timed out checks get diagnostics before the
// browser is released. API checks go through the HTTP client, assertions
// and captures.
//
// Checks run in dependency order, or concurrently when parallel mode is on
// and no check depends on another.
package runner
