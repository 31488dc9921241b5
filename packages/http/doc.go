// Package http is the API client used by API checks.
//
// A Client is built from the api.* settings: requests with relative paths are
// sent to api.url, every request carries the X-API-Key header when api.key is
// set, and api.rate paces requests across all checks sharing the client.
package http
