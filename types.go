package admission

import (
	"context"
	"time"

	"github.com/oriolmontcreus/cms-sub000/internal/rate"
	"github.com/oriolmontcreus/cms-sub000/permission"
)

// Identity is a point-in-time copy of a user, as resolved by the guard.
type Identity struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Permissions permission.Mask `json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UserProvider looks up identities by subject id. GetUserByID must return
// an error matching [ErrUserNotFound] for unknown ids.
type UserProvider interface {
	GetUserByID(ctx context.Context, id string) (Identity, error)
}

// UserProviderFunc adapts a function to [UserProvider].
type UserProviderFunc func(ctx context.Context, id string) (Identity, error)

// GetUserByID calls f.
func (f UserProviderFunc) GetUserByID(ctx context.Context, id string) (Identity, error) {
	return f(ctx, id)
}

// RatePolicy is the per-route rate-limit budget.
type RatePolicy = rate.Policy

// RateDecision is the outcome of [Engine.Allow].
type RateDecision = rate.Decision
