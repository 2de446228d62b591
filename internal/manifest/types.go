package manifest

// Extension types.
const (
	TypeGeneric = "generic"
	TypeUI      = "ui"
	TypeAPI     = "api"
	TypeModel   = "model"
	TypeTool    = "tool"
	TypeTheme   = "theme"
)

// ValidTypes lists all recognized extension types.
var ValidTypes = []string{TypeGeneric, TypeUI, TypeAPI, TypeModel, TypeTool, TypeTheme}

// Code runtimes.
const (
	RuntimeGo  = "go"
	RuntimeLua = "lua"
)

// DefaultLuaEntrypoint is the script loaded when a lua descriptor names none.
const DefaultLuaEntrypoint = "main.lua"

// DefaultHookPriority applies to hook declarations without a priority.
const DefaultHookPriority = 10

// Descriptor file names, in lookup order.
const (
	FileYAML = "extension.yaml"
	FileJSON = "extension.json"
)

// DescriptorFiles lists descriptor file names in lookup order.
var DescriptorFiles = []string{FileYAML, FileJSON}

// MountPoints is the fixed set of UI slots components can be mounted into.
var MountPoints = []string{"sidebar", "header", "footer", "chat", "settings", "main"}

// Setting value types.
const (
	SettingString  = "string"
	SettingInteger = "integer"
	SettingNumber  = "number"
	SettingBoolean = "boolean"
	SettingArray   = "array"
	SettingObject  = "object"
)

// Descriptor is the identity and capability declaration of a package.
type Descriptor struct {
	Name           string              `yaml:"name" json:"name"`
	Version        string              `yaml:"version" json:"version"`
	Description    string              `yaml:"description" json:"description"`
	Author         string              `yaml:"author" json:"author"`
	Type           string              `yaml:"type" json:"type"`
	Dependencies   []string            `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Runtime        string              `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	Entrypoint     string              `yaml:"entrypoint,omitempty" json:"entrypoint,omitempty"`
	SettingsSchema []SettingSpec       `yaml:"settings_schema,omitempty" json:"settings_schema,omitempty"`
	Hooks          []HookDecl          `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Components     []ComponentDecl     `yaml:"components,omitempty" json:"components,omitempty"`
	MountPoints    map[string][]string `yaml:"mount_points,omitempty" json:"mount_points,omitempty"`
	Routes         []RouteDecl         `yaml:"routes,omitempty" json:"routes,omitempty"`
	Tools          []ToolDecl          `yaml:"tools,omitempty" json:"tools,omitempty"`
	Styles         map[string]string   `yaml:"styles,omitempty" json:"styles,omitempty"`
	ThemeName      string              `yaml:"theme_name,omitempty" json:"theme_name,omitempty"`
}

// SettingSpec declares one configurable key. The order of SettingsSchema is
// the display order.
type SettingSpec struct {
	Key         string `yaml:"key" json:"key"`
	Type        string `yaml:"type" json:"type"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Options     []any  `yaml:"options,omitempty" json:"options,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// HasDefault reports whether the setting declares a default value.
func (s SettingSpec) HasDefault() bool { return s.Default != nil }

// HookDecl binds an exported handler to a hook name.
type HookDecl struct {
	Hook     string `yaml:"hook" json:"hook"`
	Handler  string `yaml:"handler" json:"handler"`
	Priority *int   `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// EffectivePriority returns the declared priority or DefaultHookPriority.
func (h HookDecl) EffectivePriority() int {
	if h.Priority == nil {
		return DefaultHookPriority
	}
	return *h.Priority
}

// ComponentDecl binds a component id to an exported renderer.
type ComponentDecl struct {
	ID       string `yaml:"id" json:"id"`
	Renderer string `yaml:"renderer" json:"renderer"`
}

// RouteDecl binds an HTTP path, relative to the extension's route prefix, to
// an exported handler.
type RouteDecl struct {
	Path    string   `yaml:"path" json:"path"`
	Methods []string `yaml:"methods,omitempty" json:"methods,omitempty"`
	Handler string   `yaml:"handler" json:"handler"`
}

// ToolDecl binds a tool id to an exported callable.
type ToolDecl struct {
	ID          string `yaml:"id" json:"id"`
	Handler     string `yaml:"handler" json:"handler"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Setting returns the declared setting for key.
func (d *Descriptor) Setting(key string) (SettingSpec, bool) {
	for _, s := range d.SettingsSchema {
		if s.Key == key {
			return s, true
		}
	}
	return SettingSpec{}, false
}

// Clone returns a deep copy safe to hand out of a locked section.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.Dependencies = append([]string(nil), d.Dependencies...)
	c.SettingsSchema = make([]SettingSpec, len(d.SettingsSchema))
	for i, s := range d.SettingsSchema {
		s.Options = append([]any(nil), s.Options...)
		c.SettingsSchema[i] = s
	}
	c.Hooks = append([]HookDecl(nil), d.Hooks...)
	c.Components = append([]ComponentDecl(nil), d.Components...)
	c.Routes = make([]RouteDecl, len(d.Routes))
	for i, r := range d.Routes {
		r.Methods = append([]string(nil), r.Methods...)
		c.Routes[i] = r
	}
	c.Tools = append([]ToolDecl(nil), d.Tools...)
	if d.MountPoints != nil {
		c.MountPoints = make(map[string][]string, len(d.MountPoints))
		for k, v := range d.MountPoints {
			c.MountPoints[k] = append([]string(nil), v...)
		}
	}
	if d.Styles != nil {
		c.Styles = make(map[string]string, len(d.Styles))
		for k, v := range d.Styles {
			c.Styles[k] = v
		}
	}
	return &c
}
