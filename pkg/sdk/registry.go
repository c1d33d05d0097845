// Package sdk registers SDK client handles and builds the built-in families
// from configuration.
package sdk

import (
	"fmt"
	"sort"
)

// Handle is one registered SDK client surface.
type Handle struct {
	// Family is the catalog family name, the first segment of every tool
	// derived from this handle.
	Family string
	// Client is the unmodified SDK client value to introspect.
	Client any
}

// Registry holds SDK handles by family.
type Registry struct {
	handles map[string]Handle
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Register adds a handle. Family names must be unique.
func (r *Registry) Register(family string, client any) error {
	if client == nil {
		return fmt.Errorf("sdk: nil client for family %q", family)
	}
	if _, ok := r.handles[family]; ok {
		return fmt.Errorf("sdk: family %q already registered", family)
	}
	r.handles[family] = Handle{Family: family, Client: client}
	r.order = append(r.order, family)
	return nil
}

// Handles returns the registered handles in registration order.
func (r *Registry) Handles() []Handle {
	out := make([]Handle, 0, len(r.order))
	for _, family := range r.order {
		out = append(out, r.handles[family])
	}
	return out
}

// Families returns the registered family names, sorted.
func (r *Registry) Families() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}
