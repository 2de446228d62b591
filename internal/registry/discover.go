package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/webext-labs/webext/internal/layout"
	"github.com/webext-labs/webext/internal/manifest"
	"github.com/webext-labs/webext/internal/settings"
	"go.uber.org/zap"
)

// Discover reconciles the registry with managed storage. It removes leftover
// partial and trash directories, records package directories that no entry
// tracks, and refreshes the load error of entries that are not active. A
// directory whose descriptor fails to load is recorded under its directory
// name with the error set. It returns the newly discovered entries.
func (r *Registry) Discover(ctx context.Context) ([]Entry, error) {
	var found []Entry
	err := r.guard("discover", func() error {
		dirs, err := os.ReadDir(r.layout.Installed())
		if err != nil {
			return fmt.Errorf("reading %s: %w", r.layout.Installed(), err)
		}

		r.mu.RLock()
		tracked := make(map[string]bool, len(r.entries))
		for _, e := range r.entries {
			tracked[e.dir] = true
		}
		r.mu.RUnlock()

		for _, d := range dirs {
			path := filepath.Join(r.layout.Installed(), d.Name())
			if layout.IsScratch(d.Name()) {
				if err := os.RemoveAll(path); err != nil {
					r.logger.Warn("removing leftover directory failed", zap.String("path", path), zap.Error(err))
				}
				continue
			}
			if !d.IsDir() || tracked[d.Name()] {
				continue
			}
			if e, ok := r.discoverDir(d.Name()); ok {
				found = append(found, e)
			}
		}

		r.refreshInactive()
		sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
		return nil
	})
	return found, err
}

// discoverDir records one untracked package directory.
func (r *Registry) discoverDir(dir string) (Entry, bool) {
	path := r.layout.PackageDir(dir)
	now := time.Now().UTC()
	e := &entry{
		dir:         dir,
		path:        path,
		state:       StateInstalled,
		installDate: now,
		updateDate:  now,
	}

	desc, err := manifest.Load(path)
	if err != nil {
		e.name = dir
		e.err = loadErrorPrefix + err.Error()
	} else {
		e.name = desc.Name
		e.desc = desc
		e.resolved = settings.Resolve(desc.SettingsSchema, nil)
	}

	unlock := r.lock(e.name)
	defer unlock()
	if _, exists := r.get(e.name); exists {
		r.logger.Warn("skipping package directory whose name is already installed",
			zap.String("extension", e.name), zap.String("dir", dir))
		return Entry{}, false
	}
	if err := r.store.PutRecord(e.record()); err != nil {
		r.logger.Warn("recording discovered package failed", zap.String("dir", dir), zap.Error(err))
		return Entry{}, false
	}

	r.mu.Lock()
	r.entries[e.name] = e
	snap := e.snapshot()
	r.mu.Unlock()

	r.logger.Info("extension discovered", zap.String("extension", e.name), zap.String("dir", dir))
	return snap, true
}

// refreshInactive reloads the descriptor of every entry that is not active,
// setting or clearing its load error.
func (r *Registry) refreshInactive() {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		func() {
			unlock := r.lock(name)
			defer unlock()
			e, ok := r.get(name)
			if !ok || r.stateOf(e) == StateActive {
				return
			}

			desc, loadErr := loadDescriptor(e)
			r.mu.Lock()
			changed := applyDescriptor(e, desc, loadErr)
			r.mu.Unlock()
			if !changed {
				return
			}

			overrides, err := r.store.Overrides(name)
			if err != nil {
				r.logger.Warn("reading settings failed", zap.String("extension", name), zap.Error(err))
			}
			r.update(e, func(e *entry) {
				e.resolved = settings.Resolve(e.schema(), overrides)
				e.updateDate = time.Now().UTC()
			})
			// A changed descriptor may change the code; drop the loaded module.
			if err := r.unload(e); err != nil {
				r.logger.Warn("unloading module failed", zap.String("extension", name), zap.Error(err))
			}
			if err := r.persist(e); err != nil {
				r.logger.Warn("persisting refreshed entry failed", zap.String("extension", name), zap.Error(err))
			}
		}()
	}
}
