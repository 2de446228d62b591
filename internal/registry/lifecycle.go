package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/hooks"
	"github.com/webext-labs/webext/internal/runtime"
	"github.com/webext-labs/webext/internal/settings"
	"github.com/webext-labs/webext/internal/source"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Install resolves src, copies the package into managed storage and records
// it in the installed state. An existing extension with the same name is
// never replaced.
func (r *Registry) Install(ctx context.Context, src string) (Entry, error) {
	var out Entry
	err := r.guard("install", func() error {
		staged, err := r.resolver.Resolve(ctx, src)
		if err != nil {
			return err
		}
		defer staged.Cleanup()

		desc := staged.Descriptor
		unlock := r.lock(desc.Name)
		defer unlock()

		if _, exists := r.get(desc.Name); exists {
			return fmt.Errorf("%w: extension %s is already installed", extension.ErrNameConflict, desc.Name)
		}
		dir, err := source.Commit(r.layout, staged.Root, desc.Name)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		e := &entry{
			name:        desc.Name,
			dir:         dir,
			path:        r.layout.PackageDir(dir),
			desc:        desc,
			state:       StateInstalled,
			installDate: now,
			updateDate:  now,
			resolved:    settings.Resolve(desc.SettingsSchema, nil),
		}
		if err := r.store.PutRecord(e.record()); err != nil {
			os.RemoveAll(e.path)
			return err
		}

		r.mu.Lock()
		r.entries[e.name] = e
		out = e.snapshot()
		r.mu.Unlock()

		r.logger.Info("extension installed",
			zap.String("extension", e.name),
			zap.String("version", desc.Version),
			zap.String("source", src))
		if len(e.resolved.Missing) > 0 {
			r.logger.Warn("extension has required settings without a value",
				zap.String("extension", e.name),
				zap.Strings("missing", e.resolved.Missing))
		}
		return nil
	})
	return out, err
}

// Enable moves an installed or inactive extension to active. Enabling an
// active extension succeeds without doing anything.
func (r *Registry) Enable(ctx context.Context, name string) error {
	return r.guard("enable", func() error {
		unlock := r.lock(name)
		defer unlock()
		e, ok := r.get(name)
		if !ok {
			return notFound(name)
		}
		return r.enableLocked(ctx, e)
	})
}

func (r *Registry) enableLocked(ctx context.Context, e *entry) error {
	r.mu.RLock()
	state, desc, loadErr := e.state, e.desc, e.err
	r.mu.RUnlock()
	if state == StateActive {
		return nil
	}
	if desc == nil || strings.HasPrefix(loadErr, loadErrorPrefix) {
		return fmt.Errorf("%w: %s: %s", extension.ErrPackageLayout, e.name, loadErr)
	}

	if e.module == nil {
		mod, err := runtime.Load(desc, e.path)
		if err != nil {
			r.setError(e, err)
			return err
		}
		e.module = mod
		e.initialized = false
	}

	if missing := r.reserveDependencies(e); len(missing) > 0 {
		return fmt.Errorf("%w: %s requires %s to be active",
			extension.ErrDependencyMissing, e.name, strings.Join(missing, ", "))
	}
	defer r.update(e, func(e *entry) { e.activating = false })

	if !e.initialized {
		if err := callSafely(func() error { return e.module.Initialize(r.newContext(e)) }); err != nil {
			err = fmt.Errorf("%w: %s: %w", extension.ErrInitializeFailure, e.name, err)
			r.setError(e, err)
			return err
		}
		e.initialized = true
	}

	if err := callSafely(e.module.Activate); err != nil {
		err = fmt.Errorf("%w: %s: %w", extension.ErrActivationFailure, e.name, err)
		r.setError(e, err)
		return err
	}

	if err := r.bind(e); err != nil {
		r.unbind(e.name)
		if derr := callSafely(e.module.Deactivate); derr != nil {
			err = multierr.Append(err, fmt.Errorf("deactivate: %w", derr))
		}
		err = fmt.Errorf("%w: %s: %w", extension.ErrActivationFailure, e.name, err)
		r.setError(e, err)
		return err
	}

	r.update(e, func(e *entry) {
		e.state = StateActive
		e.enabled = true
		e.err = ""
		e.updateDate = time.Now().UTC()
		r.activeOrder = append(slices.DeleteFunc(r.activeOrder, func(n string) bool { return n == e.name }), e.name)
	})
	if err := r.persist(e); err != nil {
		r.logger.Warn("persisting enabled state failed", zap.String("extension", e.name), zap.Error(err))
	}

	r.logger.Info("extension enabled", zap.String("extension", e.name))
	r.hooks.Dispatch(ctx, hooks.ExtensionLoaded, e.name)
	return nil
}

// Disable moves an active extension to inactive. It is refused while another
// active extension depends on it. Disabling an extension that is not active
// succeeds without doing anything.
func (r *Registry) Disable(ctx context.Context, name string) error {
	return r.guard("disable", func() error {
		unlock := r.lock(name)
		defer unlock()
		e, ok := r.get(name)
		if !ok {
			return notFound(name)
		}
		if r.stateOf(e) != StateActive {
			return nil
		}
		if dependents := r.reserveDisable(e); len(dependents) > 0 {
			return fmt.Errorf("%w: %s is required by active extensions: %s",
				extension.ErrStateConflict, name, strings.Join(dependents, ", "))
		}
		return r.disableLocked(ctx, e, true)
	})
}

// disableLocked tears e down. Teardown failures are recorded on the entry and
// returned as a TeardownError; the transition always completes.
func (r *Registry) disableLocked(ctx context.Context, e *entry, clearEnabled bool) error {
	var errs error
	if e.module != nil {
		if err := callSafely(e.module.Deactivate); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("deactivate %s: %w", e.name, err))
		}
	}
	r.unbind(e.name)
	r.hooks.Dispatch(ctx, hooks.ExtensionUnloaded, e.name)

	r.update(e, func(e *entry) {
		e.state = StateInactive
		e.deactivating = false
		if clearEnabled {
			e.enabled = false
		}
		e.err = ""
		if errs != nil {
			e.err = errs.Error()
		}
		e.updateDate = time.Now().UTC()
		r.activeOrder = slices.DeleteFunc(r.activeOrder, func(n string) bool { return n == e.name })
	})
	errs = multierr.Append(errs, r.persist(e))

	r.logger.Info("extension disabled", zap.String("extension", e.name))
	if errs != nil {
		r.logger.Warn("extension teardown reported errors", zap.String("extension", e.name), zap.Error(errs))
		return &TeardownError{Err: errs}
	}
	return nil
}

// Uninstall removes an installed or inactive extension: its files, its
// metadata and settings records, and its module. Active extensions must be
// disabled first.
func (r *Registry) Uninstall(ctx context.Context, name string) error {
	return r.guard("uninstall", func() error {
		unlock := r.lock(name)
		defer unlock()
		e, ok := r.get(name)
		if !ok {
			return notFound(name)
		}
		if r.stateOf(e) == StateActive {
			return fmt.Errorf("%w: %s is active, disable it first", extension.ErrStateConflict, name)
		}

		var errs error
		if e.module == nil && e.desc != nil {
			if mod, err := runtime.Load(e.desc, e.path); err == nil {
				e.module = mod
			}
		}
		if e.module != nil {
			if err := callSafely(e.module.Uninstall); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("uninstall hook of %s: %w", name, err))
			}
			errs = multierr.Append(errs, r.unload(e))
		}
		r.unbind(name)

		trash := r.layout.TrashDir()
		moved := true
		if err := os.Rename(e.path, trash); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("moving %s out of managed storage: %w", e.path, err)
			}
			moved = false
		}
		if err := r.store.Delete(name); err != nil {
			if moved {
				os.Rename(trash, e.path)
			}
			return err
		}

		r.mu.Lock()
		delete(r.entries, name)
		r.mu.Unlock()

		if moved {
			if err := os.RemoveAll(trash); err != nil {
				r.logger.Warn("removing package files failed; discover will clean up",
					zap.String("extension", name), zap.String("path", trash), zap.Error(err))
			}
		}
		r.logger.Info("extension uninstalled", zap.String("extension", name))
		if errs != nil {
			return &TeardownError{Err: errs}
		}
		return nil
	})
}

// InitializeAll enables every entry whose enabled flag is set, dependencies
// first. Entries that fail only because a dependency is not active yet are
// retried until a pass makes no progress. It returns the outcome per name.
func (r *Registry) InitializeAll(ctx context.Context) (map[string]error, error) {
	results := make(map[string]error)
	err := r.guard("initialize", func() error {
		r.mu.RLock()
		var enabled []*entry
		for _, e := range r.entries {
			if e.enabled && e.state != StateActive {
				enabled = append(enabled, e)
			}
		}
		r.mu.RUnlock()

		pending := dependencyOrder(enabled)
		for len(pending) > 0 {
			var retry []string
			progress := false
			for _, name := range pending {
				err := r.Enable(ctx, name)
				results[name] = err
				switch {
				case err == nil:
					progress = true
				case errors.Is(err, extension.ErrDependencyMissing):
					retry = append(retry, name)
				}
			}
			if !progress {
				break
			}
			pending = retry
		}
		return nil
	})
	return results, err
}

// reserveDependencies checks that every dependency of e is active. When they
// all are, e is marked as activating in the same critical section, so a
// concurrent Disable of a dependency is refused until the enable finishes.
func (r *Registry) reserveDependencies(e *entry) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	missing := r.inactiveDependencies(e.dependencies())
	if len(missing) == 0 {
		e.activating = true
	}
	return missing
}

// reserveDisable returns the active dependents of e. When there are none, e
// is marked as deactivating so no enable can count on it any more.
func (r *Registry) reserveDisable(e *entry) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	dependents := r.activeDependents(e.name)
	if len(dependents) == 0 {
		e.deactivating = true
	}
	return dependents
}

// inactiveDependencies returns the sorted dependencies that are missing,
// not active, or being disabled. r.mu must be held.
func (r *Registry) inactiveDependencies(deps []string) []string {
	if len(deps) == 0 {
		return nil
	}
	active := mapset.NewThreadUnsafeSet[string]()
	for name, e := range r.entries {
		if e.state == StateActive && !e.deactivating {
			active.Add(name)
		}
	}

	missing := mapset.NewThreadUnsafeSet(deps...).Difference(active).ToSlice()
	sort.Strings(missing)
	return missing
}

// activeDependents returns the sorted names of active or activating entries
// that declare name as a dependency. r.mu must be held.
func (r *Registry) activeDependents(name string) []string {
	var out []string
	for other, e := range r.entries {
		if other == name || (e.state != StateActive && !e.activating) {
			continue
		}
		if mapset.NewThreadUnsafeSet(e.dependencies()...).Contains(name) {
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out
}
