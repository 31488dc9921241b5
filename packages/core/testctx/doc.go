// Package testctx tracks which browser session belongs to which running test.
//
// Goroutines have no identity, so every test carries an owner id in its
// context.Context (see WithOwner). The Store maps owner ids to bindings; one
// test can never observe another test's page.
package testctx
