package extension

import "net/http"

// Exports maps binding references declared in the descriptor to callables.
// Build it once, at load time:
//
//	extension.NewExports().
//		Hook("on_ui_init", m.onUIInit).
//		Renderer("render_sidebar", m.renderSidebar).
//		Tool("get_weather", m.getWeather)
type Exports struct {
	hooks     map[string]HookFunc
	renderers map[string]RenderFunc
	handlers  map[string]http.Handler
	tools     map[string]ToolFunc
}

// NewExports returns an empty builder.
func NewExports() *Exports {
	return &Exports{
		hooks:     make(map[string]HookFunc),
		renderers: make(map[string]RenderFunc),
		handlers:  make(map[string]http.Handler),
		tools:     make(map[string]ToolFunc),
	}
}

// Hook exports a hook handler under ref.
func (e *Exports) Hook(ref string, fn HookFunc) *Exports {
	e.hooks[ref] = fn
	return e
}

// Renderer exports a component renderer under ref.
func (e *Exports) Renderer(ref string, fn RenderFunc) *Exports {
	e.renderers[ref] = fn
	return e
}

// Route exports an HTTP handler under ref.
func (e *Exports) Route(ref string, h http.Handler) *Exports {
	e.handlers[ref] = h
	return e
}

// RouteFunc is Route for plain functions.
func (e *Exports) RouteFunc(ref string, fn http.HandlerFunc) *Exports {
	return e.Route(ref, fn)
}

// Tool exports a tool under ref.
func (e *Exports) Tool(ref string, fn ToolFunc) *Exports {
	e.tools[ref] = fn
	return e
}

func (e *Exports) LookupHook(ref string) (HookFunc, bool) {
	if e == nil {
		return nil, false
	}
	fn, ok := e.hooks[ref]
	return fn, ok
}

func (e *Exports) LookupRenderer(ref string) (RenderFunc, bool) {
	if e == nil {
		return nil, false
	}
	fn, ok := e.renderers[ref]
	return fn, ok
}

func (e *Exports) LookupRoute(ref string) (http.Handler, bool) {
	if e == nil {
		return nil, false
	}
	h, ok := e.handlers[ref]
	return h, ok
}

func (e *Exports) LookupTool(ref string) (ToolFunc, bool) {
	if e == nil {
		return nil, false
	}
	fn, ok := e.tools[ref]
	return fn, ok
}
