package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/runtime"
)

// recorder records lifecycle calls of a test module and injects failures.
type recorder struct {
	name string

	mu             sync.Mutex
	failInit       bool
	failActivate   bool
	failDeactivate bool
	inits          int
	activations    int
	deactivations  int
	uninstalls     int
	closes         int
	ctx            extension.Context

	// When set, Initialize and Deactivate close the started channel and
	// wait on the gate before doing anything else.
	initStarted, initGate             chan struct{}
	deactivateStarted, deactivateGate chan struct{}
}

// hold returns a pair of channels: the first is closed once the call has
// started and the call blocks until the second is closed.
func hold() (started, gate chan struct{}) {
	return make(chan struct{}), make(chan struct{})
}

func wait(started, gate chan struct{}) {
	if started == nil {
		return
	}
	close(started)
	<-gate
}

func (p *recorder) counts() (inits, activations, deactivations int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inits, p.activations, p.deactivations
}

func (p *recorder) set(fn func(p *recorder)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

var (
	recordersMu   sync.Mutex
	recorders     = map[string]*recorder{}
	registered = map[string]bool{}

	deactivationLog   []string
	deactivationLogMu sync.Mutex
)

// registerRecorder makes name loadable as a Go module and returns a fresh recorder
// for it.
func registerRecorder(t *testing.T, name string) *recorder {
	t.Helper()
	recordersMu.Lock()
	defer recordersMu.Unlock()
	p := &recorder{name: name}
	recorders[name] = p
	if !registered[name] {
		registered[name] = true
		runtime.Register(name, func() extension.Module {
			return &testModule{p: recorderFor(name)}
		})
	}
	return p
}

func recorderFor(name string) *recorder {
	recordersMu.Lock()
	defer recordersMu.Unlock()
	return recorders[name]
}

func resetDeactivationLog() {
	deactivationLogMu.Lock()
	deactivationLog = nil
	deactivationLogMu.Unlock()
}

func deactivations() []string {
	deactivationLogMu.Lock()
	defer deactivationLogMu.Unlock()
	return append([]string(nil), deactivationLog...)
}

type testModule struct {
	p *recorder
}

func (m *testModule) Initialize(ctx extension.Context) error {
	m.p.mu.Lock()
	started, gate := m.p.initStarted, m.p.initGate
	m.p.mu.Unlock()
	wait(started, gate)

	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	m.p.inits++
	m.p.ctx = ctx
	if m.p.failInit {
		return errors.New("init refused")
	}
	return nil
}

func (m *testModule) Activate() error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	m.p.activations++
	if m.p.failActivate {
		return errors.New("activate refused")
	}
	return nil
}

func (m *testModule) Deactivate() error {
	m.p.mu.Lock()
	started, gate := m.p.deactivateStarted, m.p.deactivateGate
	m.p.deactivateStarted, m.p.deactivateGate = nil, nil
	m.p.mu.Unlock()
	wait(started, gate)

	m.p.mu.Lock()
	m.p.deactivations++
	fail := m.p.failDeactivate
	m.p.mu.Unlock()

	deactivationLogMu.Lock()
	deactivationLog = append(deactivationLog, m.p.name)
	deactivationLogMu.Unlock()
	if fail {
		return errors.New("deactivate refused")
	}
	return nil
}

func (m *testModule) Uninstall() error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	m.p.uninstalls++
	return nil
}

func (m *testModule) Close() error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	m.p.closes++
	return nil
}

func (m *testModule) Exports() *extension.Exports {
	return extension.NewExports().
		Hook("on_event", func(_ context.Context, payload any) (any, error) {
			return fmt.Sprintf("%v+%s", payload, m.p.name), nil
		}).
		Renderer("render", func(context.Context) (extension.Fragment, error) {
			m.p.mu.Lock()
			ctx := m.p.ctx
			m.p.mu.Unlock()
			v, _ := ctx.Setting("greeting")
			return extension.Fragment{HTML: fmt.Sprint(v)}, nil
		}).
		RouteFunc("handle", func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, m.p.name)
		}).
		Tool("echo", func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		})
}

// descriptor renders a minimal extension.yaml with extra YAML appended.
func descriptor(name, typ, extra string) string {
	return fmt.Sprintf("name: %s\nversion: \"1.0.0\"\ndescription: test extension\nauthor: tester\ntype: %s\n%s", name, typ, extra)
}

const eventHook = `hooks:
  - hook: system_init
    handler: on_event
`

// writePackage writes a package directory under parent and returns its path.
func writePackage(t *testing.T, parent, dir, yaml string) string {
	t.Helper()
	path := filepath.Join(parent, dir)
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "extension.yaml"), []byte(yaml), 0644))
	return path
}

func openTest(t *testing.T, root string, opts ...Option) *Registry {
	t.Helper()
	r, err := Open(root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// installRecorder registers a recorder module and installs a generic package for it.
func installRecorder(t *testing.T, r *Registry, name, extra string) *recorder {
	t.Helper()
	p := registerRecorder(t, name)
	src := writePackage(t, t.TempDir(), name, descriptor(name, "generic", extra))
	_, err := r.Install(context.Background(), src)
	require.NoError(t, err)
	return p
}
