package registry

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/hooks"
	"github.com/webext-labs/webext/internal/settings"
)

// UpdateSettings validates overrides against the extension's settings schema,
// merges them into the stored overrides and persists the result. A nil value
// resets that key to its default. Nothing is written when any key is invalid.
func (r *Registry) UpdateSettings(ctx context.Context, name string, overrides map[string]any) (Entry, error) {
	var out Entry
	err := r.guard("update_settings", func() error {
		unlock := r.lock(name)
		defer unlock()
		e, ok := r.get(name)
		if !ok {
			return notFound(name)
		}

		r.mu.RLock()
		schema := e.schema()
		loaded := e.desc != nil
		r.mu.RUnlock()
		if !loaded {
			return fmt.Errorf("%w: %s has no loadable descriptor", extension.ErrPackageLayout, name)
		}

		changes, err := settings.Validate(name, schema, overrides)
		if err != nil {
			return err
		}
		stored, err := r.store.Overrides(name)
		if err != nil {
			return err
		}
		merged := settings.Merge(stored, changes)
		if err := r.store.PutOverrides(name, merged); err != nil {
			return err
		}

		resolved := settings.Resolve(schema, merged)
		r.update(e, func(e *entry) {
			e.resolved = resolved
			e.updateDate = time.Now().UTC()
			out = e.snapshot()
		})
		if err := r.persist(e); err != nil {
			return err
		}

		r.hooks.Dispatch(ctx, hooks.SystemSettingsSave, map[string]any{
			"name":     name,
			"settings": maps.Clone(resolved.Values),
		})
		return nil
	})
	return out, err
}
