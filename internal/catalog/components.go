package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/webext-labs/webext/internal/extension"
	"go.uber.org/zap"
)

// ComponentRef identifies a component in a mount point.
type ComponentRef struct {
	Owner string `json:"owner"`
	ID    string `json:"id"`
}

// Rendered is the output of one component in a mount point.
type Rendered struct {
	ComponentRef
	extension.Fragment
}

// Components holds renderers and the mount points that reference them.
type Components struct {
	mu        sync.RWMutex
	order     ownerOrder
	renderers map[string]map[string]extension.RenderFunc
	declared  map[string]map[string][]string
	mounts    map[string][]ComponentRef
	logger    *zap.Logger
}

// NewComponents returns an empty component catalog.
func NewComponents(logger *zap.Logger) *Components {
	return &Components{
		renderers: make(map[string]map[string]extension.RenderFunc),
		declared:  make(map[string]map[string][]string),
		mounts:    make(map[string][]ComponentRef),
		logger:    logger,
	}
}

// Add registers owner's components and its mount declarations in one step.
func (c *Components) Add(owner string, renderers map[string]extension.RenderFunc, mounts map[string][]string) error {
	for mount, ids := range mounts {
		for _, id := range ids {
			if _, ok := renderers[id]; !ok {
				return fmt.Errorf("mount point %s references unknown component %s.%s", mount, owner, id)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.order.has(owner) {
		return fmt.Errorf("%w: %s", ErrOwnerExists, owner)
	}

	r := make(map[string]extension.RenderFunc, len(renderers))
	for id, fn := range renderers {
		r[id] = fn
	}
	m := make(map[string][]string, len(mounts))
	for mount, ids := range mounts {
		m[mount] = append([]string(nil), ids...)
	}

	c.order = append(c.order, owner)
	c.renderers[owner] = r
	c.declared[owner] = m
	c.recomputeLocked()
	return nil
}

// Remove drops owner's components from the catalog and from every mount point.
func (c *Components) Remove(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.order.has(owner) {
		return
	}
	c.order = c.order.without(owner)
	delete(c.renderers, owner)
	delete(c.declared, owner)
	c.recomputeLocked()
}

// recomputeLocked rebuilds mount point resolution from the current owners:
// owners in activation order, ids in declaration order.
func (c *Components) recomputeLocked() {
	mounts := make(map[string][]ComponentRef)
	for _, owner := range c.order {
		for mount, ids := range c.declared[owner] {
			for _, id := range ids {
				mounts[mount] = append(mounts[mount], ComponentRef{Owner: owner, ID: id})
			}
		}
	}
	c.mounts = mounts
}

// MountPoint returns the components shown in mount, in display order.
func (c *Components) MountPoint(mount string) []ComponentRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ComponentRef(nil), c.mounts[mount]...)
}

// Render renders every component in mount. A failing renderer is logged
// and left out, as is an empty fragment.
func (c *Components) Render(ctx context.Context, mount string) []Rendered {
	c.mu.RLock()
	refs := c.mounts[mount]
	fns := make([]extension.RenderFunc, len(refs))
	for i, ref := range refs {
		fns[i] = c.renderers[ref.Owner][ref.ID]
	}
	c.mu.RUnlock()

	out := make([]Rendered, 0, len(refs))
	for i, ref := range refs {
		frag, err := render(ctx, fns[i])
		if err != nil {
			c.logger.Warn("component render failed",
				zap.String("mount", mount),
				zap.String("owner", ref.Owner),
				zap.String("component", ref.ID),
				zap.Error(err))
			continue
		}
		if frag.HTML == "" && len(frag.Data) == 0 {
			continue
		}
		out = append(out, Rendered{ComponentRef: ref, Fragment: frag})
	}
	return out
}

func render(ctx context.Context, fn extension.RenderFunc) (frag extension.Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panicked: %v", r)
		}
	}()
	if fn == nil {
		return extension.Fragment{}, fmt.Errorf("no renderer")
	}
	return fn(ctx)
}
