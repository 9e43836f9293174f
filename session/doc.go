// Package session caches resolved identities by session token so the guard
// does not re-verify and re-fetch on every request.
//
// Entries expire after a TTL (5 minutes by default) and the cache is bounded
// by an LRU limit. Tokens are keyed by their SHA-256 digest; raw tokens are
// never held as map keys.
//
// # Invalidation
//
// [Cache.InvalidateBySubject] removes every entry whose identity belongs to a
// subject. It is an O(n) sweep, bounded by the number of live sessions.
// A [Cache.Resolve] that was in flight when the sweep ran does not repopulate
// the cache with its now-stale result.
//
// # What this package must NOT do
//
//   - Verify tokens or look up users (the caller's resolver does).
//   - Persist anything; losing the cache costs a re-verification only.
package session
