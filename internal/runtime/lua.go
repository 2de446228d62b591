package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/manifest"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrStateClosed is returned when calling into a closed Lua module.
var ErrStateClosed = errors.New("lua state is closed")

// maxRequestBody caps the request body handed to a Lua route handler.
const maxRequestBody = 1 << 20

// Lifecycle function names looked up on the table a script returns.
const (
	luaInitialize = "initialize"
	luaActivate   = "activate"
	luaDeactivate = "deactivate"
	luaUninstall  = "uninstall"
)

// removedGlobals are stripped after the safe libraries are opened so a
// script cannot load code from disk or from strings.
var removedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// luaModule is an extension whose code is a Lua script. The script runs once
// at load and must return a table; lifecycle functions and binding handlers
// are looked up on that table.
//
// gopher-lua's LState is not goroutine-safe, so every call holds mu.
type luaModule struct {
	name string

	mu      sync.Mutex
	L       *lua.LState
	mod     *lua.LTable
	closed  bool
	ctx     extension.Context
	logger  *zap.Logger
	exports *extension.Exports
}

func loadLua(desc *manifest.Descriptor, dir string) (extension.Module, error) {
	entry := desc.Entrypoint
	if entry == "" {
		entry = manifest.DefaultLuaEntrypoint
	}
	script := filepath.Join(dir, filepath.FromSlash(entry))
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("lua entrypoint %s: %w", entry, err)
	}

	m := &luaModule{name: desc.Name, logger: zap.NewNop()}
	m.L = newSandboxedState()
	m.installAPI()

	fn, err := m.L.LoadFile(script)
	if err != nil {
		m.L.Close()
		return nil, fmt.Errorf("compiling %s: %w", entry, err)
	}
	m.L.Push(fn)
	if err := m.L.PCall(0, 1, nil); err != nil {
		m.L.Close()
		return nil, fmt.Errorf("running %s: %w", entry, err)
	}
	ret := m.L.Get(-1)
	m.L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		m.L.Close()
		return nil, fmt.Errorf("%s must return a table, got %s", entry, ret.Type())
	}
	m.mod = tbl
	m.exports = m.buildExports(desc)
	return m, nil
}

// newSandboxedState opens only the base, table, string and math libraries.
// io, os, debug and package are never opened.
func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// installAPI exposes the webext global to the script. The functions run
// while mu is already held by the calling Go method.
func (m *luaModule) installAPI() {
	L := m.L
	api := L.NewTable()
	api.RawSetString("name", lua.LString(m.name))
	L.SetFuncs(api, map[string]lua.LGFunction{
		"setting": func(L *lua.LState) int {
			key := L.CheckString(1)
			if m.ctx == nil {
				L.Push(lua.LNil)
				return 1
			}
			v, _ := m.ctx.Setting(key)
			L.Push(toLua(L, v))
			return 1
		},
		"settings": func(L *lua.LState) int {
			if m.ctx == nil {
				L.Push(L.NewTable())
				return 1
			}
			L.Push(toLua(L, m.ctx.Settings()))
			return 1
		},
		"lookup": func(L *lua.LState) int {
			if m.ctx == nil {
				L.Push(lua.LNil)
				return 1
			}
			info, ok := m.ctx.Lookup(L.CheckString(1))
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(toLua(L, map[string]any{
				"name":    info.Name,
				"version": info.Version,
				"type":    info.Type,
				"state":   info.State,
			}))
			return 1
		},
		"log": func(L *lua.LState) int {
			level := L.CheckString(1)
			msg := L.CheckString(2)
			switch level {
			case "debug":
				m.logger.Debug(msg)
			case "warn":
				m.logger.Warn(msg)
			case "error":
				m.logger.Error(msg)
			default:
				m.logger.Info(msg)
			}
			return 0
		},
	})
	L.SetGlobal("webext", api)
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]any, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		m.logger.Info(fmt.Sprint(parts...))
		return 0
	}))
}

func (m *luaModule) function(name string) *lua.LFunction {
	fn, _ := m.mod.RawGetString(name).(*lua.LFunction)
	return fn
}

// call invokes fn with Go arguments and returns its results.
func (m *luaModule) call(ctx context.Context, fn *lua.LFunction, args ...any) (out []lua.LValue, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStateClosed
	}
	if ctx != nil && ctx.Done() != nil {
		m.L.SetContext(ctx)
		defer m.L.RemoveContext()
	}

	top := m.L.GetTop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		m.L.SetTop(top)
	}()

	m.L.Push(fn)
	for _, a := range args {
		m.L.Push(toLua(m.L, a))
	}
	if err := m.L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, err
	}
	n := m.L.GetTop() - top
	out = make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		out[i] = m.L.Get(top + i + 1)
	}
	return out, nil
}

// lifecycle runs an optional lifecycle function. Returning false, optionally
// followed by a reason string, fails the call. With strict set, any falsy
// result fails, including nil or no return value at all.
func (m *luaModule) lifecycle(name string, strict bool) error {
	fn := m.function(name)
	if fn == nil {
		return nil
	}
	out, err := m.call(context.Background(), fn)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	switch {
	case len(out) == 0:
		if strict {
			return fmt.Errorf("%s returned nothing", name)
		}
	case out[0] == lua.LFalse || (strict && !lua.LVAsBool(out[0])):
		if len(out) > 1 {
			if reason, ok := out[1].(lua.LString); ok {
				return fmt.Errorf("%s returned %s: %s", name, out[0].String(), string(reason))
			}
		}
		return fmt.Errorf("%s returned %s", name, out[0].String())
	}
	return nil
}

func (m *luaModule) Initialize(ctx extension.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	if l := ctx.Logger(); l != nil {
		m.logger = l
	}
	m.mu.Unlock()
	return m.lifecycle(luaInitialize, true)
}

func (m *luaModule) Activate() error   { return m.lifecycle(luaActivate, false) }
func (m *luaModule) Deactivate() error { return m.lifecycle(luaDeactivate, false) }
func (m *luaModule) Uninstall() error  { return m.lifecycle(luaUninstall, false) }

func (m *luaModule) Exports() *extension.Exports { return m.exports }

// Close releases the Lua state.
func (m *luaModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.L.Close()
	m.closed = true
	return nil
}

var _ io.Closer = (*luaModule)(nil)

// buildExports wraps every function the descriptor refers to. References
// that do not name a function on the module table are left out so the
// registry reports them as unresolved.
func (m *luaModule) buildExports(desc *manifest.Descriptor) *extension.Exports {
	ex := extension.NewExports()
	for _, h := range desc.Hooks {
		if fn := m.function(h.Handler); fn != nil {
			ex.Hook(h.Handler, m.hookFunc(fn))
		}
	}
	for _, c := range desc.Components {
		if fn := m.function(c.Renderer); fn != nil {
			ex.Renderer(c.Renderer, m.renderFunc(fn))
		}
	}
	for _, t := range desc.Tools {
		if fn := m.function(t.Handler); fn != nil {
			ex.Tool(t.Handler, m.toolFunc(fn))
		}
	}
	for _, r := range desc.Routes {
		if fn := m.function(r.Handler); fn != nil {
			ex.Route(r.Handler, m.routeHandler(fn))
		}
	}
	return ex
}

func first(out []lua.LValue) any {
	if len(out) == 0 {
		return nil
	}
	return toGo(out[0])
}

func (m *luaModule) hookFunc(fn *lua.LFunction) extension.HookFunc {
	return func(ctx context.Context, payload any) (any, error) {
		out, err := m.call(ctx, fn, payload)
		if err != nil {
			return nil, err
		}
		return first(out), nil
	}
}

// renderFunc accepts either an HTML string or a table with html and data
// fields.
func (m *luaModule) renderFunc(fn *lua.LFunction) extension.RenderFunc {
	return func(ctx context.Context) (extension.Fragment, error) {
		out, err := m.call(ctx, fn)
		if err != nil {
			return extension.Fragment{}, err
		}
		switch v := first(out).(type) {
		case string:
			return extension.Fragment{HTML: v}, nil
		case map[string]any:
			frag := extension.Fragment{}
			frag.HTML, _ = v["html"].(string)
			frag.Data, _ = v["data"].(map[string]any)
			return frag, nil
		case nil:
			return extension.Fragment{}, nil
		default:
			return extension.Fragment{}, fmt.Errorf("renderer returned %T, want string or table", v)
		}
	}
}

func (m *luaModule) toolFunc(fn *lua.LFunction) extension.ToolFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		if args == nil {
			args = map[string]any{}
		}
		out, err := m.call(ctx, fn, args)
		if err != nil {
			return nil, err
		}
		return first(out), nil
	}
}

// routeHandler passes a request table to the script. The handler returns a
// body and an optional status: strings are sent as text, anything else as
// JSON, and nil with no status yields 204.
func (m *luaModule) routeHandler(fn *lua.LFunction) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
			return
		}
		req := map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"query":  firstValues(r.URL.Query()),
			"params": urlParams(r),
			"body":   string(body),
		}
		var decoded any
		if len(body) > 0 && json.Unmarshal(body, &decoded) == nil {
			req["json"] = decoded
		}

		out, err := m.call(r.Context(), fn, req)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": err.Error()})
			return
		}

		status := 0
		if len(out) > 1 {
			if n, ok := out[1].(lua.LNumber); ok {
				status = int(n)
			}
		}
		switch v := first(out).(type) {
		case nil:
			if status == 0 {
				status = http.StatusNoContent
			}
			w.WriteHeader(status)
		case string:
			if status == 0 {
				status = http.StatusOK
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(status)
			io.WriteString(w, v)
		default:
			if status == 0 {
				status = http.StatusOK
			}
			writeJSON(w, status, v)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func firstValues(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func urlParams(r *http.Request) map[string]any {
	out := map[string]any{}
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return out
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		out[key] = rctx.URLParams.Values[i]
	}
	return out
}
