// Package tenant models the tenants a dispatch runs on behalf of and the
// per-tenant set of enabled optional components.
package tenant

import (
	"context"
	"slices"
	"sort"
)

// Tenant identifies the sender of a dispatch.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Context is the tenant view handed to handlers for one dispatch. It is built
// fresh on every send and is not shared across sends.
type Context struct {
	ID         string
	Name       string
	Components map[string]struct{}
}

// NewContext builds a Context for t with the given enabled component ids.
func NewContext(t *Tenant, enabled []string) *Context {
	set := make(map[string]struct{}, len(enabled))
	for _, id := range enabled {
		set[id] = struct{}{}
	}
	return &Context{ID: t.ID, Name: t.Name, Components: set}
}

// HasComponent reports whether the optional component id is enabled.
func (c *Context) HasComponent(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Components[id]
	return ok
}

// EnabledComponents returns the enabled component ids in sorted order.
func (c *Context) EnabledComponents() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Components))
	for id := range c.Components {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Static is an in-memory provider mapping tenant id to enabled component ids.
type Static map[string][]string

// EnabledComponents implements the dispatch tenant provider.
func (s Static) EnabledComponents(_ context.Context, tenantID string) ([]string, error) {
	return slices.Clone(s[tenantID]), nil
}
