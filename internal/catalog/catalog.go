// Package catalog holds the capabilities of active extensions: UI components
// and the mount points that display them, HTTP routes, tools, and themes.
// Each catalog is keyed by (owner, id) and is populated by the registry only
// while the owner is active, so its contents are always exactly the union of
// the active extensions' bindings.
package catalog

import (
	"errors"
	"slices"

	"go.uber.org/zap"
)

var (
	// ErrOwnerExists is returned when an owner is added twice without Remove.
	ErrOwnerExists = errors.New("owner already registered")
	// ErrToolNotFound is returned by Invoke for an unknown tool reference.
	ErrToolNotFound = errors.New("tool not found")
	// ErrAmbiguousTool is returned by Invoke when a bare id matches several owners.
	ErrAmbiguousTool = errors.New("ambiguous tool reference")
)

// Set groups the catalogs the registry drives.
type Set struct {
	Components *Components
	Routes     *Routes
	Tools      *Tools
	Themes     *Themes
}

// NewSet returns empty catalogs sharing logger.
func NewSet(logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set{
		Components: NewComponents(logger),
		Routes:     NewRoutes(),
		Tools:      NewTools(logger),
		Themes:     NewThemes(),
	}
}

// RemoveOwner drops everything owner contributed to any catalog.
func (s *Set) RemoveOwner(owner string) {
	s.Components.Remove(owner)
	s.Routes.Remove(owner)
	s.Tools.Remove(owner)
	s.Themes.Remove(owner)
}

// ownerOrder tracks owners in the order they were added.
type ownerOrder []string

func (o ownerOrder) has(owner string) bool { return slices.Contains(o, owner) }

func (o ownerOrder) without(owner string) ownerOrder {
	return slices.DeleteFunc(slices.Clone(o), func(s string) bool { return s == owner })
}
