package registry

import (
	"maps"

	"github.com/webext-labs/webext/internal/extension"
	"go.uber.org/zap"
)

// extContext is the extension.Context handed to Initialize. It reads the
// registry on every call, so settings changes are visible immediately.
type extContext struct {
	r      *Registry
	name   string
	dir    string
	logger *zap.Logger
}

func (r *Registry) newContext(e *entry) extension.Context {
	return &extContext{
		r:      r,
		name:   e.name,
		dir:    e.path,
		logger: r.logger.Named(e.name),
	}
}

func (c *extContext) Name() string        { return c.name }
func (c *extContext) Dir() string         { return c.dir }
func (c *extContext) Logger() *zap.Logger { return c.logger }

func (c *extContext) Setting(key string) (any, bool) {
	c.r.mu.RLock()
	defer c.r.mu.RUnlock()
	e, ok := c.r.entries[c.name]
	if !ok {
		return nil, false
	}
	return e.resolved.Get(key)
}

func (c *extContext) Settings() map[string]any {
	c.r.mu.RLock()
	defer c.r.mu.RUnlock()
	e, ok := c.r.entries[c.name]
	if !ok {
		return map[string]any{}
	}
	return maps.Clone(e.resolved.Values)
}

func (c *extContext) Lookup(name string) (extension.Info, bool) {
	c.r.mu.RLock()
	defer c.r.mu.RUnlock()
	e, ok := c.r.entries[name]
	if !ok {
		return extension.Info{}, false
	}
	return e.info(), true
}
