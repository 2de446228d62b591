package admin

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/webext-labs/webext/internal/registry"
)

type sourceRequest struct {
	Source string `json:"source"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type settingsRequest struct {
	Name     string         `json:"name"`
	Settings map[string]any `json:"settings"`
}

type toolRequest struct {
	Args map[string]any `json:"args"`
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	list := s.reg.List()
	respond(w, nil, fmt.Sprintf("%d extensions", len(list)), envelope{"extensions": list})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.reg.Get(chi.URLParam(r, "name"))
	respond(w, err, "ok", envelope{"extension": e})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Source == "" {
		fail(w, http.StatusBadRequest, "source is required")
		return
	}
	e, err := s.reg.Install(r.Context(), req.Source)
	respond(w, err, fmt.Sprintf("Extension %s installed", e.Name), envelope{"extension": e})
}

// nameAction decodes {name} and runs op on it.
func (s *Server) nameAction(verb string, op func(ctx context.Context, name string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameRequest
		if err := decode(r, &req); err != nil {
			fail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if req.Name == "" {
			fail(w, http.StatusBadRequest, "name is required")
			return
		}
		err := op(r.Context(), req.Name)
		respond(w, err, fmt.Sprintf("Extension %s %s", req.Name, verb), nil)
	}
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.nameAction("enabled", s.reg.Enable)(w, r)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.nameAction("disabled", s.reg.Disable)(w, r)
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	s.nameAction("uninstalled", s.reg.Uninstall)(w, r)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Name == "" {
		fail(w, http.StatusBadRequest, "name is required")
		return
	}
	e, err := s.reg.UpdateSettings(r.Context(), req.Name, req.Settings)
	respond(w, err, fmt.Sprintf("Settings of %s saved", req.Name), envelope{"extension": e})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	found, err := s.reg.Discover(r.Context())
	if found == nil {
		found = []registry.Entry{}
	}
	respond(w, err, fmt.Sprintf("%d extensions discovered", len(found)), envelope{"extensions": found})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	results, err := s.reg.InitializeAll(r.Context())
	out := make(map[string]registry.Result, len(results))
	for name, rerr := range results {
		out[name] = registry.Outcome(rerr, "enabled")
	}
	respond(w, err, fmt.Sprintf("%d extensions initialized", len(out)), envelope{"results": out})
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	mount := chi.URLParam(r, "mount")
	components := s.reg.Catalogs().Components.Render(r.Context(), mount)
	respond(w, nil, mount, envelope{"components": components})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.reg.Catalogs().Tools.List()
	respond(w, nil, fmt.Sprintf("%d tools", len(tools)), envelope{"tools": tools})
}

func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	ref := chi.URLParam(r, "ref")
	result, err := s.reg.Catalogs().Tools.Invoke(r.Context(), ref, req.Args)
	respond(w, err, "ok", envelope{"result": result})
}

// handleExtensionRoute forwards /api/ext/{name}/... to the router of an
// active extension with the prefix stripped.
func (s *Server) handleExtensionRoute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h, ok := s.reg.Catalogs().Routes.Handler(name)
	if !ok {
		fail(w, http.StatusNotFound, fmt.Sprintf("no routes for extension %s", name))
		return
	}

	r2 := r.Clone(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
	r2.URL.Path = "/" + chi.URLParam(r, "*")
	r2.URL.RawPath = ""
	h.ServeHTTP(w, r2)
}

// handleStatic serves files from the static/ directory of an active
// extension.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, err := s.reg.Get(name)
	if err != nil || e.State != registry.StateActive {
		fail(w, http.StatusNotFound, fmt.Sprintf("no static assets for extension %s", name))
		return
	}
	fs := http.FileServer(http.Dir(filepath.Join(e.Path, "static")))
	http.StripPrefix("/static/ext/"+name, fs).ServeHTTP(w, r)
}
