// Package lifecycle drives one test's browser from setup to release.
//
// A Controller moves through Idle, BrowserReady, ContextBound and Navigated
// during Setup, and through TearingDown to Released during Teardown. Teardown
// is failure aware: FAILURE, FAILURE_WITHIN_THRESHOLD and TIMEOUT outcomes get
// a diagnostics pass before the session is disposed, and the execution context
// binding is always cleared last.
package lifecycle
