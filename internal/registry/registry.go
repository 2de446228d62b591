package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webext-labs/webext/internal/branding"
	"github.com/webext-labs/webext/internal/catalog"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/hooks"
	"github.com/webext-labs/webext/internal/layout"
	"github.com/webext-labs/webext/internal/manifest"
	"github.com/webext-labs/webext/internal/settings"
	"github.com/webext-labs/webext/internal/source"
	"github.com/webext-labs/webext/internal/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultStoreTimeout bounds how long Open waits for the state file lock.
const DefaultStoreTimeout = 2 * time.Second

// Registry is the extension registry. Create one with Open and release it
// with Close.
type Registry struct {
	layout       layout.Layout
	store        *store.Store
	logger       *zap.Logger
	hooks        *hooks.Dispatcher
	catalogs     *catalog.Set
	resolver     *source.Resolver
	storeTimeout time.Duration

	mu          sync.RWMutex
	entries     map[string]*entry
	activeOrder []string

	locks  sync.Map
	closed atomic.Bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Extensions get named children of it.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDispatcher sets the hook dispatcher.
func WithDispatcher(d *hooks.Dispatcher) Option {
	return func(r *Registry) {
		if d != nil {
			r.hooks = d
		}
	}
}

// WithCatalogs sets the capability catalogs.
func WithCatalogs(c *catalog.Set) Option {
	return func(r *Registry) {
		if c != nil {
			r.catalogs = c
		}
	}
}

// WithResolver sets the source resolver used by Install.
func WithResolver(res *source.Resolver) Option {
	return func(r *Registry) {
		if res != nil {
			r.resolver = res
		}
	}
}

// WithStoreTimeout bounds how long Open waits for the state file lock.
func WithStoreTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.storeTimeout = d
		}
	}
}

// Open opens the registry rooted at the managed directory root, creating the
// directory structure and state file when missing. Every persisted record is
// reloaded from disk; a record whose package no longer loads keeps its
// metadata and gets its error populated.
func Open(root string, opts ...Option) (*Registry, error) {
	r := &Registry{
		layout:       layout.New(root),
		logger:       zap.NewNop(),
		storeTimeout: DefaultStoreTimeout,
		entries:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.hooks == nil {
		r.hooks = hooks.New(hooks.WithLogger(r.logger))
	}
	if r.catalogs == nil {
		r.catalogs = catalog.NewSet(r.logger)
	}
	if r.resolver == nil {
		r.resolver = source.NewResolver(r.layout.Temp(),
			source.WithUserAgent(branding.UserAgent()),
			source.WithLogger(r.logger))
	}

	if err := r.layout.Ensure(); err != nil {
		return nil, err
	}
	st, err := store.Open(r.layout.StatePath(), r.storeTimeout)
	if err != nil {
		return nil, err
	}
	r.store = st

	if err := r.load(); err != nil {
		st.Close()
		return nil, err
	}
	return r, nil
}

// load rebuilds the in-memory entries from the state file. Nothing is loaded
// into memory at this point, so entries that were active come back inactive
// with their enabled flag intact.
func (r *Registry) load() error {
	records, err := r.store.Records()
	if err != nil {
		return err
	}
	for _, rec := range records {
		e := &entry{
			name:        rec.Name,
			dir:         rec.Dir,
			path:        r.layout.PackageDir(rec.Dir),
			desc:        rec.Descriptor,
			state:       State(rec.State),
			enabled:     rec.Enabled,
			installDate: rec.InstallDate,
			updateDate:  rec.UpdateDate,
			err:         rec.Error,
		}
		if e.state == StateActive {
			e.state = StateInactive
		}
		desc, loadErr := loadDescriptor(e)
		applyDescriptor(e, desc, loadErr)

		overrides, err := r.store.Overrides(rec.Name)
		if err != nil {
			return err
		}
		e.resolved = settings.Resolve(e.schema(), overrides)
		r.entries[e.name] = e
	}
	return nil
}

const loadErrorPrefix = "loading descriptor: "

// loadDescriptor reads e's descriptor from its package directory. It does
// disk and schema work, so callers run it without holding r.mu.
var loadDescriptor = func(e *entry) (*manifest.Descriptor, error) {
	desc, err := manifest.Load(e.path)
	if err == nil && desc.Name != e.name {
		err = fmt.Errorf("descriptor name changed to %q", desc.Name)
	}
	return desc, err
}

// applyDescriptor stores the result of loadDescriptor on e and reports
// whether anything changed. The caller holds the write lock or owns e
// exclusively.
func applyDescriptor(e *entry, desc *manifest.Descriptor, err error) bool {
	if err != nil {
		msg := loadErrorPrefix + err.Error()
		if e.err == msg {
			return false
		}
		e.err = msg
		return true
	}
	changed := !reflect.DeepEqual(e.desc, desc)
	if strings.HasPrefix(e.err, loadErrorPrefix) {
		e.err = ""
		changed = true
	}
	e.desc = desc
	return changed
}

// Layout returns the managed directory layout.
func (r *Registry) Layout() layout.Layout { return r.layout }

// Hooks returns the dispatcher extensions register with.
func (r *Registry) Hooks() *hooks.Dispatcher { return r.hooks }

// Catalogs returns the capability catalogs.
func (r *Registry) Catalogs() *catalog.Set { return r.catalogs }

// Logger returns the registry logger.
func (r *Registry) Logger() *zap.Logger { return r.logger }

// List returns a snapshot of every entry sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a snapshot of the named entry.
func (r *Registry) Get(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, notFound(name)
	}
	return e.snapshot(), nil
}

// Close disables every active extension in reverse activation order without
// touching its persisted enabled flag, unloads all modules and closes the
// state file. Errors from every step are combined.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx := context.Background()

	r.mu.RLock()
	order := slices.Clone(r.activeOrder)
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Reverse(order)

	var errs error
	for _, name := range order {
		errs = multierr.Append(errs, r.closeOne(ctx, name, true))
	}
	for _, name := range names {
		errs = multierr.Append(errs, r.closeOne(ctx, name, false))
	}
	errs = multierr.Append(errs, r.store.Close())
	return errs
}

func (r *Registry) closeOne(ctx context.Context, name string, disable bool) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: closing %s: %v", extension.ErrInternal, name, p)
		}
	}()
	unlock := r.lock(name)
	defer unlock()
	e, ok := r.get(name)
	if !ok {
		return nil
	}
	if disable {
		if r.stateOf(e) != StateActive {
			return nil
		}
		return unwrapTeardown(r.disableLocked(ctx, e, false))
	}
	return r.unload(e)
}

// lock serializes operations on one extension name.
func (r *Registry) lock(name string) func() {
	v, _ := r.locks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (r *Registry) get(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

func (r *Registry) stateOf(e *entry) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return e.state
}

// update applies fn to e under the write lock.
func (r *Registry) update(e *entry, fn func(e *entry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(e)
}

func (r *Registry) setError(e *entry, err error) {
	r.update(e, func(e *entry) { e.err = err.Error() })
}

// persist writes e's metadata record.
func (r *Registry) persist(e *entry) error {
	r.mu.RLock()
	rec := e.record()
	r.mu.RUnlock()
	return r.store.PutRecord(rec)
}

// unload closes e's module, if loaded.
func (r *Registry) unload(e *entry) error {
	if e.module == nil {
		return nil
	}
	var err error
	if c, ok := e.module.(io.Closer); ok {
		if cerr := callSafely(c.Close); cerr != nil {
			err = fmt.Errorf("closing module %s: %w", e.name, cerr)
		}
	}
	e.module = nil
	e.initialized = false
	return err
}

// guard runs a public operation, turning panics into ErrInternal.
func (r *Registry) guard(op string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("recovered panic",
				zap.String("op", op),
				zap.Any("panic", p),
				zap.Stack("stack"))
			err = fmt.Errorf("%w: %s: %v", extension.ErrInternal, op, p)
		}
	}()
	if r.closed.Load() {
		return fmt.Errorf("%w: registry is closed", extension.ErrInternal)
	}
	return fn()
}

// callSafely runs extension code, turning panics into errors.
func callSafely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", extension.ErrNotFound, name)
}

// TeardownError reports failures during a transition that still completed.
type TeardownError struct {
	Err error
}

func (e *TeardownError) Error() string { return e.Err.Error() }

func (e *TeardownError) Unwrap() error { return e.Err }

func unwrapTeardown(err error) error {
	var te *TeardownError
	if errors.As(err, &te) {
		return te.Err
	}
	return err
}

// Result is the definite outcome of an operation as shown to users.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Outcome turns an operation error into a Result. A TeardownError still
// counts as success and its errors are appended to msg.
func Outcome(err error, msg string) Result {
	if err == nil {
		return Result{Success: true, Message: msg}
	}
	var te *TeardownError
	if errors.As(err, &te) {
		return Result{Success: true, Message: fmt.Sprintf("%s (with errors: %v)", msg, te.Err)}
	}
	return Result{Success: false, Message: err.Error()}
}
