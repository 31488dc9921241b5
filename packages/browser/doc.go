// Package browser owns browser sessions: one engine instance, one isolated
// browsing context and one page, acquired together and released in reverse order.
//
// The automation capability itself is abstracted behind the Driver interfaces so
// that the lifecycle, wait and diagnostics packages can be exercised against the
// in-memory fake in browsertest. PlaywrightDriver is the production implementation.
package browser
