package extension

import (
	"context"

	"go.uber.org/zap"
)

// Module is the code half of an extension. The registry calls Initialize once
// per load, then Activate on every enable and Deactivate on every disable.
// Uninstall runs before the package files are removed.
//
// A Module may also implement io.Closer; the registry calls Close when the
// module is unloaded.
type Module interface {
	Initialize(ctx Context) error
	Activate() error
	Deactivate() error
	Uninstall() error
	// Exports returns the callables the descriptor's bindings refer to.
	Exports() *Exports
}

// Base implements the lifecycle methods as no-ops. Embed it and override what
// the extension needs.
type Base struct{}

func (Base) Initialize(Context) error { return nil }
func (Base) Activate() error          { return nil }
func (Base) Deactivate() error        { return nil }
func (Base) Uninstall() error         { return nil }

// Context is handed to Initialize. Setting reads always reflect the latest
// stored overrides.
type Context interface {
	// Name is the extension's own name.
	Name() string
	// Dir is the package root in managed storage.
	Dir() string
	Setting(key string) (any, bool)
	Settings() map[string]any
	// Lookup is a read-only view of another registry entry.
	Lookup(name string) (Info, bool)
	Logger() *zap.Logger
}

// Info is the read-only summary of a registry entry visible to extensions.
type Info struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Type         string   `json:"type"`
	State        string   `json:"state"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// HookFunc handles a hook. In chained dispatch the returned value replaces the
// payload passed to the next handler; in fire-and-forget dispatch it is ignored.
type HookFunc func(ctx context.Context, payload any) (any, error)

// RenderFunc renders a UI component.
type RenderFunc func(ctx context.Context) (Fragment, error)

// Fragment is a rendered component.
type Fragment struct {
	HTML string         `json:"html"`
	Data map[string]any `json:"data,omitempty"`
}

// ToolFunc executes a tool with JSON-compatible arguments.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)
