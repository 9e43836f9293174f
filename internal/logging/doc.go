// Package logging builds the process slog.Logger.
//
// Records go to a JSON handler in production and a text handler in
// development. Context extractors add request_id and subject_id to every
// record logged with a context. When a Sentry DSN is configured, warnings
// and errors are also sent to Sentry and errors open issues.
package logging
