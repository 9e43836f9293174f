package permission

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Registry maps role names to masks. Roles are registered during start-up
// and the registry is frozen before it is used for lookups on the request
// path.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Mask
	frozen bool
}

var defaultRegistry = DefaultRegistry()

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Mask)}
}

// DefaultRegistry returns a frozen registry holding client, developer and
// super_admin.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("client", Client)
	_ = r.Register("developer", Developer)
	_ = r.Register("super_admin", SuperAdmin)
	r.Freeze()
	return r
}

// Register binds name to mask. Names are case-insensitive.
func (r *Registry) Register(name string, mask Mask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}

	name = normalizeName(name)
	if name == "" {
		return errors.New("role name cannot be empty")
	}
	if mask == None {
		return errors.New("role mask cannot be empty")
	}
	if _, exists := r.byName[name]; exists {
		return errors.New("role already registered")
	}

	r.byName[name] = mask
	return nil
}

// Extend registers name as base plus one additional bit. The new role
// satisfies every requirement base satisfies.
func (r *Registry) Extend(name string, base Mask, bit int) (Mask, error) {
	if bit < 0 || bit >= 64 {
		return None, errors.New("bit out of range")
	}
	if base.Has(bit) {
		return None, errors.New("bit already set in base role")
	}
	mask := base.Set(bit)
	if err := r.Register(name, mask); err != nil {
		return None, err
	}
	return mask, nil
}

// Lookup returns the mask registered under name.
func (r *Registry) Lookup(name string) (Mask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mask, ok := r.byName[normalizeName(name)]
	return mask, ok
}

// Parse resolves name against this registry, falling back to numeric
// mask literals.
func (r *Registry) Parse(name string) (Mask, error) {
	if mask, ok := r.Lookup(name); ok {
		return mask, nil
	}
	return ParseMask(name)
}

// Names returns the registered role names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered roles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
