// Package middleware adapts admission.Engine to net/http.
//
// # Guards
//
//   - [Guard] admits requests whose session cookie resolves to an identity
//     holding every bit of the required mask.
//   - [RequireAuth], [RequireClient], [RequireDeveloper] and
//     [RequireSuperAdmin] are shorthands for the built-in roles.
//
// Every guard rejection is a 401 with the body "unauthorized". The reason
// is logged by the engine and never written to the response.
//
// # Rate limiting
//
// [RateLimit] counts requests per route and caller in a fixed window and
// answers 429 once the window is full. Allowed and rejected responses both
// carry Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. A store failure lets the request through.
//
// Placed inside a guard, the limiter keys callers by subject id; outside
// it keys them by forwarded address.
package middleware
