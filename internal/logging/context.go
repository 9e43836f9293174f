package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	admission "github.com/oriolmontcreus/cms-sub000"
)

type requestIDKey struct{}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// NewRequestID returns a random request id.
func NewRequestID() string {
	return uuid.NewString()
}

// RequestIDExtractor adds request_id.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := RequestID(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String("request_id", id), true
}

// SubjectExtractor adds subject_id once the auth guard has attached an
// identity.
func SubjectExtractor(ctx context.Context) (slog.Attr, bool) {
	identity, ok := admission.IdentityFromContext(ctx)
	if !ok || identity.ID == "" {
		return slog.Attr{}, false
	}
	return slog.String("subject_id", identity.ID), true
}

// DefaultExtractors returns the extractors used by [New].
func DefaultExtractors() []ContextExtractor {
	return []ContextExtractor{RequestIDExtractor, SubjectExtractor}
}
