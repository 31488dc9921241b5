// Package wait provides bounded polling waits against the page bound to the
// calling test: element visibility and clickability, URL and title fragments,
// and arbitrary conditions.
//
// A wait polls immediately, then sleeps the poll interval (or whatever remains
// of the bound, if less) between polls. The last poll happens at the deadline,
// so a condition that becomes true just before it is still observed.
package wait
