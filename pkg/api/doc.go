// Package api defines the wire types shared by the vetora clinic API:
// profiles, kennels, pets and hospitalizations, the request bodies that
// create and change them, and the typed errors every endpoint returns.
//
// Errors serialize as {"error": message, "code": CODE, "details": {...}}.
// [APIError.Public] gives the representation used over HTTP, where gate
// rejections with status 403 share the FORBIDDEN code.
//
// Status machines:
//   - Hospitalization: active → {discharged, deceased, transferred}, all terminal
//   - Kennel: available ⇄ maintenance ⇄ reserved by hand; occupied only via admission
package api
