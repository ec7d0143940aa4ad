package component

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDuplicateRegistration is returned by a strict registry when an id is registered twice.
	ErrDuplicateRegistration = errors.New("component already registered")

	// ErrCompatibilityFrozen is returned when compatibility errors are set a second time.
	ErrCompatibilityFrozen = errors.New("compatibility errors already set")

	// ErrNotFound is returned for operations on an unknown component id.
	ErrNotFound = errors.New("component not found")
)

// Registry holds installed components indexed by id.
// Registration happens at load time; lookups are safe from concurrent senders.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*Component
	strict     bool
}

// Option configures a Registry.
type Option func(*Registry)

// Strict makes re-registration of an existing id an error instead of an overwrite.
func Strict() Option {
	return func(r *Registry) {
		r.strict = true
	}
}

// NewRegistry creates an empty component registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		components: make(map[string]*Component),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a component by id.
func (r *Registry) Register(c Component) error {
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		return fmt.Errorf("component id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[c.ID]; exists && r.strict {
		return fmt.Errorf("%w: %q", ErrDuplicateRegistration, c.ID)
	}
	stored := c.clone()
	r.components[c.ID] = &stored
	return nil
}

// Lookup returns a copy of the component registered under id.
func (r *Registry) Lookup(id string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.components[id]
	if !ok {
		return Component{}, false
	}
	return c.clone(), true
}

// Status returns the eligibility flags of id without copying the component.
func (r *Registry) Status(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.components[id]
	if !ok {
		return Status{}, false
	}
	return Status{ID: c.ID, Core: c.Core, Compatible: len(c.CompatibilityErrors) == 0}, true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.components[id]
	return ok
}

// IsCore reports whether id is a registered core component.
func (r *Registry) IsCore(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[id]
	return ok && c.Core
}

// HasCompatibilityErrors reports whether id has been flagged by the compatibility pass.
func (r *Registry) HasCompatibilityErrors(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[id]
	return ok && len(c.CompatibilityErrors) > 0
}

// SetCompatibilityErrors records errs for id. Errors can be set once and are
// never cleared; an empty errs is a no-op.
func (r *Registry) SetCompatibilityErrors(id string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.components[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if len(c.CompatibilityErrors) > 0 {
		return fmt.Errorf("%w: %q", ErrCompatibilityFrozen, id)
	}
	c.CompatibilityErrors = slices.Clone(errs)
	return nil
}

// All returns every registered component sorted by id.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Component, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}
