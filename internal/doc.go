// Package internal holds packages private to the admission module.
//
// # Sub-packages
//
//   - rate: fixed-window counters over the volatile store
//   - logging: slog construction, request-scoped attributes, Sentry fan-out
//   - content: in-memory users, pages and the site build runner behind cmsd
//   - server: the chi router and JSON handlers for cmsd
//
// # What this package must NOT do
//
//   - Export types that appear in the public admission API.
//   - Be imported by any package outside this module.
package internal
