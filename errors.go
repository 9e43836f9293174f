package admission

import (
	"errors"

	"github.com/oriolmontcreus/cms-sub000/jwt"
	"github.com/oriolmontcreus/cms-sub000/store"
)

var (
	// ErrUnauthorized is the only authentication error that reaches clients.
	// Missing, invalid and expired tokens, unknown subjects and missing
	// role bits all map to it.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTooManyRequests is returned when a rate-limit window is full.
	ErrTooManyRequests = errors.New("too many requests")
	// ErrTokenCreation is returned by IssueToken when signing fails.
	ErrTokenCreation = jwt.ErrTokenCreation
	// ErrInvalidToken marks verification failures. It never crosses the
	// guard boundary.
	ErrInvalidToken = jwt.ErrInvalidToken
	// ErrUserNotFound is returned by a UserProvider for an unknown subject.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned when the builder is missing a dependency.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrStoreUnavailable wraps volatile store failures during rate limiting.
	ErrStoreUnavailable = store.ErrUnavailable
	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
)
