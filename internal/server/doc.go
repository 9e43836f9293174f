// Package server wires the CMS HTTP API onto a chi router.
//
// Every protected route is composed from the admission middlewares: the
// auth guard for the required role and, where a route has a budget, the
// rate limiter. Handlers return errors, and [Server] maps them to status
// codes in one place.
package server
