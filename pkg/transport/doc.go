// Package transport holds the HTTP plumbing shared by vetora's handlers:
// the middleware chain, panic recovery, request ID assignment
// (X-Request-ID), structured request logging via log/slog, and JSON
// response helpers.
//
// Error responses always have the shape
//
//	{"error": "human message", "code": "STABLE_CODE", "details": {...}}
//
// with the HTTP status taken from the api.APIError. Authorization failures
// with status 403 are reported with code FORBIDDEN and the precise reason
// in details.reason.
package transport
