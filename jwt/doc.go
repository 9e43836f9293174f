// Package jwt signs and verifies the compact session tokens carried in the
// CMS session cookie.
//
// Tokens carry the subject id and email, an issued-at stamp and a fixed
// expiry (24h by default). The clock is injectable so expiry can be tested
// without sleeping.
//
// # Information hiding
//
// Verify reports every failure as [ErrInvalidToken]. Callers must not tell
// clients whether a token was expired, tampered with or malformed.
//
// # What this package must NOT do
//
//   - Look up users or cache identities.
//   - Read cookies or HTTP headers.
package jwt
