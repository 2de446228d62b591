package registry

import (
	"maps"
	"slices"
	"time"

	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/manifest"
	"github.com/webext-labs/webext/internal/settings"
	"github.com/webext-labs/webext/internal/store"
)

// State is the lifecycle state of an entry.
type State string

// Lifecycle states.
const (
	StateInstalled State = "installed"
	StateActive    State = "active"
	StateInactive  State = "inactive"
)

// Entry is a snapshot of one installed extension.
type Entry struct {
	Name            string               `json:"name"`
	Descriptor      *manifest.Descriptor `json:"descriptor,omitempty"`
	Path            string               `json:"path"`
	State           State                `json:"state"`
	Enabled         bool                 `json:"enabled"`
	InstallDate     time.Time            `json:"install_date"`
	UpdateDate      time.Time            `json:"update_date"`
	Error           string               `json:"error,omitempty"`
	Settings        map[string]any       `json:"settings"`
	MissingSettings []string             `json:"missing_settings,omitempty"`
}

// Version returns the descriptor version, or "?" when the descriptor could
// not be loaded.
func (e Entry) Version() string {
	if e.Descriptor == nil {
		return "?"
	}
	return e.Descriptor.Version
}

// entry is the registry-owned record. Exported-state fields are guarded by
// Registry.mu; module and initialized are only touched under the name lock.
// activating and deactivating mark a transition that has passed its
// dependency check but has not finished yet.
type entry struct {
	name        string
	dir         string
	path        string
	desc        *manifest.Descriptor
	state       State
	enabled     bool
	installDate time.Time
	updateDate  time.Time
	err         string
	resolved    settings.Resolved

	activating   bool
	deactivating bool

	module      extension.Module
	initialized bool
}

func (e *entry) snapshot() Entry {
	return Entry{
		Name:            e.name,
		Descriptor:      e.desc.Clone(),
		Path:            e.path,
		State:           e.state,
		Enabled:         e.enabled,
		InstallDate:     e.installDate,
		UpdateDate:      e.updateDate,
		Error:           e.err,
		Settings:        maps.Clone(e.resolved.Values),
		MissingSettings: slices.Clone(e.resolved.Missing),
	}
}

func (e *entry) info() extension.Info {
	info := extension.Info{Name: e.name, State: string(e.state)}
	if e.desc != nil {
		info.Version = e.desc.Version
		info.Type = e.desc.Type
		info.Dependencies = slices.Clone(e.desc.Dependencies)
	}
	return info
}

func (e *entry) record() store.Record {
	return store.Record{
		Name:        e.name,
		Dir:         e.dir,
		State:       string(e.state),
		Enabled:     e.enabled,
		InstallDate: e.installDate,
		UpdateDate:  e.updateDate,
		Error:       e.err,
		Descriptor:  e.desc,
	}
}

func (e *entry) schema() []manifest.SettingSpec {
	if e.desc == nil {
		return nil
	}
	return e.desc.SettingsSchema
}

func (e *entry) dependencies() []string {
	if e.desc == nil {
		return nil
	}
	return e.desc.Dependencies
}
