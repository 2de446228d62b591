package catalog

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Route is one HTTP binding of an extension. Path is relative to the
// extension's prefix and may contain chi URL parameters such as {location}.
type Route struct {
	Path    string
	Methods []string
	Handler http.Handler
}

// RouteInfo describes a mounted route.
type RouteInfo struct {
	Owner   string   `json:"owner"`
	Path    string   `json:"path"`
	Methods []string `json:"methods"`
}

// Routes keeps one chi router per active owner.
type Routes struct {
	mu      sync.RWMutex
	order   ownerOrder
	routers map[string]chi.Router
	info    map[string][]RouteInfo
}

// NewRoutes returns an empty route catalog.
func NewRoutes() *Routes {
	return &Routes{
		routers: make(map[string]chi.Router),
		info:    make(map[string][]RouteInfo),
	}
}

// Add builds owner's router. Nothing is registered if any route is invalid.
func (r *Routes) Add(owner string, routes []Route) error {
	router := chi.NewRouter()
	info := make([]RouteInfo, 0, len(routes))
	for _, rt := range routes {
		if rt.Handler == nil {
			return fmt.Errorf("route %s %v of %s has no handler", rt.Path, rt.Methods, owner)
		}
		if err := mount(router, rt); err != nil {
			return fmt.Errorf("mounting route %s of %s: %w", rt.Path, owner, err)
		}
		info = append(info, RouteInfo{Owner: owner, Path: rt.Path, Methods: append([]string(nil), rt.Methods...)})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.order.has(owner) {
		return fmt.Errorf("%w: %s", ErrOwnerExists, owner)
	}
	r.order = append(r.order, owner)
	r.routers[owner] = router
	r.info[owner] = info
	return nil
}

// mount registers rt on router, turning chi's panics on malformed patterns
// into errors.
func mount(router chi.Router, rt Route) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()
	for _, m := range rt.Methods {
		router.Method(m, rt.Path, rt.Handler)
	}
	return nil
}

// Remove unmounts every route of owner.
func (r *Routes) Remove(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = r.order.without(owner)
	delete(r.routers, owner)
	delete(r.info, owner)
}

// Handler returns owner's router. Requests must carry the path relative to
// the owner's prefix.
func (r *Routes) Handler(owner string) (http.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.routers[owner]
	return h, ok
}

// List returns every mounted route, ordered by owner activation then
// declaration.
func (r *Routes) List() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []RouteInfo
	for _, owner := range r.order {
		out = append(out, r.info[owner]...)
	}
	return out
}

// Owners returns the owners with mounted routes, sorted.
func (r *Routes) Owners() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}
