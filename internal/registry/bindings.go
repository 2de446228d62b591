package registry

import (
	"fmt"

	"github.com/webext-labs/webext/internal/catalog"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/manifest"
)

// bind resolves every binding the descriptor declares against the module's
// exports and registers it. On error the caller rolls back with unbind.
func (r *Registry) bind(e *entry) error {
	desc := e.desc
	ex := e.module.Exports()

	for _, h := range desc.Hooks {
		fn, ok := ex.LookupHook(h.Handler)
		if !ok {
			return fmt.Errorf("hook %s: handler %q is not exported", h.Hook, h.Handler)
		}
		if _, err := r.hooks.Register(h.Hook, h.EffectivePriority(), e.name, fn); err != nil {
			return err
		}
	}

	if len(desc.Components) > 0 {
		renderers := make(map[string]extension.RenderFunc, len(desc.Components))
		for _, c := range desc.Components {
			fn, ok := ex.LookupRenderer(c.Renderer)
			if !ok {
				return fmt.Errorf("component %s: renderer %q is not exported", c.ID, c.Renderer)
			}
			renderers[c.ID] = fn
		}
		if err := r.catalogs.Components.Add(e.name, renderers, desc.MountPoints); err != nil {
			return err
		}
	}

	if len(desc.Routes) > 0 {
		routes := make([]catalog.Route, 0, len(desc.Routes))
		for _, rt := range desc.Routes {
			h, ok := ex.LookupRoute(rt.Handler)
			if !ok {
				return fmt.Errorf("route %s: handler %q is not exported", rt.Path, rt.Handler)
			}
			routes = append(routes, catalog.Route{Path: rt.Path, Methods: rt.Methods, Handler: h})
		}
		if err := r.catalogs.Routes.Add(e.name, routes); err != nil {
			return err
		}
	}

	if len(desc.Tools) > 0 {
		tools := make([]catalog.Tool, 0, len(desc.Tools))
		for _, t := range desc.Tools {
			fn, ok := ex.LookupTool(t.Handler)
			if !ok {
				return fmt.Errorf("tool %s: handler %q is not exported", t.ID, t.Handler)
			}
			tools = append(tools, catalog.Tool{ID: t.ID, Description: t.Description, Fn: fn})
		}
		if err := r.catalogs.Tools.Add(e.name, tools); err != nil {
			return err
		}
	}

	if desc.Type == manifest.TypeTheme {
		name := desc.ThemeName
		if name == "" {
			name = desc.Name
		}
		if err := r.catalogs.Themes.Add(e.name, name, desc.Styles); err != nil {
			return err
		}
	}
	return nil
}

// unbind removes every hook and catalog registration owned by name.
func (r *Registry) unbind(name string) {
	r.hooks.UnregisterOwner(name)
	r.catalogs.RemoveOwner(name)
}
