package content

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	admission "github.com/oriolmontcreus/cms-sub000"
	"github.com/oriolmontcreus/cms-sub000/password"
	"github.com/oriolmontcreus/cms-sub000/permission"
)

// Invalidator drops cached identities for a subject. *admission.Engine
// satisfies it.
type Invalidator interface {
	InvalidateSubject(ctx context.Context, subjectID string) int
}

// UserInput carries the writable fields of a user. Nil fields are left
// unchanged by Update.
type UserInput struct {
	Email       *string          `json:"email"`
	Name        *string          `json:"name"`
	Password    *string          `json:"password"`
	Permissions *permission.Mask `json:"permissions"`
}

type userRecord struct {
	identity     admission.Identity
	passwordHash string
}

// Users is an in-memory account store. It implements
// admission.UserProvider.
type Users struct {
	hasher *password.Hasher
	now    func() time.Time

	mu          sync.RWMutex
	byID        map[string]*userRecord
	byEmail     map[string]string
	invalidator Invalidator
}

var _ admission.UserProvider = (*Users)(nil)

// NewUsers creates an empty store. A nil now uses time.Now.
func NewUsers(hasher *password.Hasher, now func() time.Time) *Users {
	if now == nil {
		now = time.Now
	}
	return &Users{
		hasher:  hasher,
		now:     now,
		byID:    make(map[string]*userRecord),
		byEmail: make(map[string]string),
	}
}

// SetInvalidator registers the session cache to notify on every change.
// The engine is built after the store, so this is set late.
func (u *Users) SetInvalidator(inv Invalidator) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.invalidator = inv
}

// GetUserByID implements admission.UserProvider.
func (u *Users) GetUserByID(_ context.Context, id string) (admission.Identity, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	rec, ok := u.byID[id]
	if !ok {
		return admission.Identity{}, fmt.Errorf("%w: %s", admission.ErrUserNotFound, id)
	}
	return rec.identity, nil
}

// List returns every user ordered by email.
func (u *Users) List(_ context.Context) []admission.Identity {
	u.mu.RLock()
	out := make([]admission.Identity, 0, len(u.byID))
	for _, rec := range u.byID {
		out = append(out, rec.identity)
	}
	u.mu.RUnlock()

	slices.SortFunc(out, func(a, b admission.Identity) int { return strings.Compare(a.Email, b.Email) })
	return out
}

// Create adds a user. Email and Password are required; Permissions
// defaults to [permission.Client].
func (u *Users) Create(_ context.Context, in UserInput) (admission.Identity, error) {
	if in.Email == nil || in.Password == nil {
		return admission.Identity{}, fmt.Errorf("%w: email and password required", ErrInvalid)
	}
	email, err := normalizeEmail(*in.Email)
	if err != nil {
		return admission.Identity{}, err
	}
	hash, err := u.hash(*in.Password)
	if err != nil {
		return admission.Identity{}, err
	}

	now := u.now().UTC()
	identity := admission.Identity{
		ID:          uuid.NewString(),
		Email:       email,
		Permissions: permission.Client,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Name != nil {
		identity.Name = strings.TrimSpace(*in.Name)
	}
	if in.Permissions != nil {
		identity.Permissions = *in.Permissions
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if _, taken := u.byEmail[email]; taken {
		return admission.Identity{}, fmt.Errorf("%w: %s", ErrConflict, email)
	}
	u.byID[identity.ID] = &userRecord{identity: identity, passwordHash: hash}
	u.byEmail[email] = identity.ID
	return identity, nil
}

// Update applies the non-nil fields of in and drops cached identities for
// the user so the next request sees the change.
func (u *Users) Update(ctx context.Context, id string, in UserInput) (admission.Identity, error) {
	var (
		email string
		hash  string
		err   error
	)
	if in.Email != nil {
		if email, err = normalizeEmail(*in.Email); err != nil {
			return admission.Identity{}, err
		}
	}
	if in.Password != nil {
		if hash, err = u.hash(*in.Password); err != nil {
			return admission.Identity{}, err
		}
	}

	u.mu.Lock()
	rec, ok := u.byID[id]
	if !ok {
		u.mu.Unlock()
		return admission.Identity{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if email != "" && email != rec.identity.Email {
		if _, taken := u.byEmail[email]; taken {
			u.mu.Unlock()
			return admission.Identity{}, fmt.Errorf("%w: %s", ErrConflict, email)
		}
		delete(u.byEmail, rec.identity.Email)
		u.byEmail[email] = id
		rec.identity.Email = email
	}
	if in.Name != nil {
		rec.identity.Name = strings.TrimSpace(*in.Name)
	}
	if in.Permissions != nil {
		rec.identity.Permissions = *in.Permissions
	}
	if hash != "" {
		rec.passwordHash = hash
	}
	rec.identity.UpdatedAt = u.now().UTC()
	updated := rec.identity
	inv := u.invalidator
	u.mu.Unlock()

	if inv != nil {
		inv.InvalidateSubject(ctx, id)
	}
	return updated, nil
}

// Delete removes a user and drops its cached identities.
func (u *Users) Delete(ctx context.Context, id string) error {
	u.mu.Lock()
	rec, ok := u.byID[id]
	if !ok {
		u.mu.Unlock()
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	delete(u.byID, id)
	delete(u.byEmail, rec.identity.Email)
	inv := u.invalidator
	u.mu.Unlock()

	if inv != nil {
		inv.InvalidateSubject(ctx, id)
	}
	return nil
}

// CheckPassword returns the identity for email when pw matches. Unknown
// emails and wrong passwords both yield [ErrInvalidCredentials] after the
// same amount of hashing work.
func (u *Users) CheckPassword(_ context.Context, email, pw string) (admission.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u.mu.RLock()
	var rec userRecord
	id, ok := u.byEmail[email]
	if ok {
		rec = *u.byID[id]
	}
	u.mu.RUnlock()

	if !ok {
		_ = u.hasher.CompareDummy(pw)
		return admission.Identity{}, ErrInvalidCredentials
	}
	if err := u.hasher.Compare(pw, rec.passwordHash); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return admission.Identity{}, ErrInvalidCredentials
		}
		return admission.Identity{}, fmt.Errorf("check password: %w", err)
	}
	return rec.identity, nil
}

func (u *Users) hash(pw string) (string, error) {
	hash, err := u.hasher.Hash(pw)
	if errors.Is(err, password.ErrTooShort) {
		return "", fmt.Errorf("%w: password must be at least %d bytes", ErrInvalid, password.MinLength)
	}
	return hash, err
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: email %q", ErrInvalid, raw)
	}
	return strings.ToLower(addr.Address), nil
}
