package component

import "slices"

// Source records how a component was installed.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceScript  Source = "script"
)

// Component is an installable unit of functionality and the unit of
// per-tenant enablement.
type Component struct {
	ID          string
	Name        string
	Version     string
	Description string
	Author      string
	Source      Source

	// Core components are eligible for every tenant regardless of enablement.
	Core bool

	// MinPlatform and MaxPlatform bound the platform versions this component
	// runs on. Empty means unbounded.
	MinPlatform string
	MaxPlatform string

	// Requires lists component ids that must be installed alongside this one.
	Requires []string

	// CompatibilityErrors is filled by the compatibility pass. Non-empty means
	// the component never receives dispatch.
	CompatibilityErrors []string
}

// Compatible reports whether the component has no compatibility errors.
func (c Component) Compatible() bool {
	return len(c.CompatibilityErrors) == 0
}

// Status is the part of a component dispatch eligibility depends on.
type Status struct {
	ID         string
	Core       bool
	Compatible bool
}

func (c Component) clone() Component {
	c.Requires = slices.Clone(c.Requires)
	c.CompatibilityErrors = slices.Clone(c.CompatibilityErrors)
	return c
}
