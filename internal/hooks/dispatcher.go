// Package hooks implements the ordered, failure-isolated event bus through
// which the host notifies extensions and lets them transform values.
//
// Handlers for a hook run in ascending priority; equal priorities run in
// registration order. A handler that returns an error or panics is logged
// with its owner and skipped, and dispatch always continues with the next
// handler.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webext-labs/webext/internal/extension"
	"go.uber.org/zap"
)

var (
	// ErrUnknownHook is returned when registering for a hook outside the catalog.
	ErrUnknownHook = errors.New("unknown hook")
	// ErrHandlerTimeout is reported by TimeoutGuard.
	ErrHandlerTimeout = errors.New("hook handler timed out")
)

// Binding is one registered handler.
type Binding struct {
	ID       string
	Hook     string
	Priority int
	Owner    string
	Seq      uint64
	Handler  extension.HookFunc
}

// Guard wraps every handler invocation. call runs the handler.
type Guard func(ctx context.Context, b Binding, call func(context.Context) (any, error)) (any, error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used to report failing handlers.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithHooks adds host-defined hook names to the catalog.
func WithHooks(names ...string) Option {
	return func(d *Dispatcher) {
		for _, n := range names {
			d.known[n] = true
		}
	}
}

// WithGuard wraps every handler invocation with g.
func WithGuard(g Guard) Option {
	return func(d *Dispatcher) { d.guard = g }
}

// Dispatcher holds hook bindings. It is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	known    map[string]bool
	bindings map[string][]Binding
	seq      uint64
	logger   *zap.Logger
	guard    Guard
}

// New returns a Dispatcher that knows the default Catalog.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		known:    make(map[string]bool, len(Catalog)),
		bindings: make(map[string][]Binding),
		logger:   zap.NewNop(),
	}
	for _, n := range Catalog {
		d.known[n] = true
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a handler. There is no uniqueness constraint on hook and
// priority; a later registration with an equal priority runs after earlier ones.
func (d *Dispatcher) Register(hook string, priority int, owner string, handler extension.HookFunc) (Binding, error) {
	if handler == nil {
		return Binding{}, fmt.Errorf("registering %s for %s: nil handler", hook, owner)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.known[hook] {
		return Binding{}, fmt.Errorf("%w %q", ErrUnknownHook, hook)
	}

	d.seq++
	b := Binding{
		ID:       uuid.NewString(),
		Hook:     hook,
		Priority: priority,
		Owner:    owner,
		Seq:      d.seq,
		Handler:  handler,
	}

	list := d.bindings[hook]
	i := len(list)
	for j, existing := range list {
		if existing.Priority > priority {
			i = j
			break
		}
	}
	// Copy on write so snapshots handed to running dispatches stay intact.
	next := make([]Binding, 0, len(list)+1)
	next = append(next, list[:i]...)
	next = append(next, b)
	next = append(next, list[i:]...)
	d.bindings[hook] = next

	return b, nil
}

// UnregisterOwner removes every binding owned by owner and returns how many
// were removed.
func (d *Dispatcher) UnregisterOwner(owner string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for hook, list := range d.bindings {
		next := make([]Binding, 0, len(list))
		for _, b := range list {
			if b.Owner == owner {
				removed++
				continue
			}
			next = append(next, b)
		}
		if len(next) != len(list) {
			d.setLocked(hook, next)
		}
	}
	return removed
}

func (d *Dispatcher) setLocked(hook string, list []Binding) {
	if len(list) == 0 {
		delete(d.bindings, hook)
		return
	}
	d.bindings[hook] = list
}

// Bindings returns the handlers for hook in invocation order.
func (d *Dispatcher) Bindings(hook string) []Binding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Binding(nil), d.bindings[hook]...)
}

func (d *Dispatcher) snapshot(hook string) []Binding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bindings[hook]
}

// Dispatch runs every handler for hook with the same payload and discards
// their results.
func (d *Dispatcher) Dispatch(ctx context.Context, hook string, payload any) {
	for _, b := range d.snapshot(hook) {
		_, _ = d.invoke(ctx, b, payload)
	}
}

// Transform threads value through every handler for hook, each receiving the
// previous handler's result. A failing handler is skipped and the value it
// received is passed on unchanged.
func (d *Dispatcher) Transform(ctx context.Context, hook string, value any) any {
	for _, b := range d.snapshot(hook) {
		out, err := d.invoke(ctx, b, value)
		if err != nil {
			continue
		}
		value = out
	}
	return value
}

// invoke calls one handler, converting panics into errors and logging failures.
func (d *Dispatcher) invoke(ctx context.Context, b Binding, payload any) (out any, err error) {
	call := func(ctx context.Context) (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("hook handler panicked",
					zap.String("hook", b.Hook),
					zap.String("owner", b.Owner),
					zap.Any("panic", r),
					zap.Stack("stack"))
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return b.Handler(ctx, payload)
	}

	if d.guard != nil {
		out, err = d.guard(ctx, b, call)
	} else {
		out, err = call(ctx)
	}
	if err != nil {
		d.logger.Warn("hook handler failed",
			zap.String("hook", b.Hook),
			zap.String("owner", b.Owner),
			zap.Int("priority", b.Priority),
			zap.Error(err))
		return nil, err
	}
	return out, nil
}

// TimeoutGuard fails any handler that has not returned within timeout. The
// handler's context is cancelled; a handler that ignores it keeps running in
// the background but its result is discarded.
func TimeoutGuard(timeout time.Duration) Guard {
	return func(ctx context.Context, b Binding, call func(context.Context) (any, error)) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type result struct {
			v   any
			err error
		}
		done := make(chan result, 1)
		go func() {
			v, err := call(ctx)
			done <- result{v, err}
		}()

		select {
		case r := <-done:
			return r.v, r.err
		case <-ctx.Done():
			return nil, fmt.Errorf("%w after %s", ErrHandlerTimeout, timeout)
		}
	}
}
