// Package capture extracts values from API responses so later checks can use
// them as {{name}} or {{check.name}} placeholders.
package capture
