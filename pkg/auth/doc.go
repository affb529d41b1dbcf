// Package auth resolves callers and authorizes their calls.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// The Resolver turns the winning identity into a Context by loading the
// caller's profile; any failure yields an unauthenticated Context. The Gate
// evaluates a declarative Policy against that Context (authentication,
// active account, role, clinic, in that order), consults the RateLimiter,
// propagates tenant and role to the storage session, and runs the handler
// with a tenant-bound storage.Scope. Gate.Route serves request/response
// handlers and Action serves action-style handlers with typed arguments;
// both share one pipeline.
package auth
