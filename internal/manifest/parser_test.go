package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testdataDir = "testdata"

func testPath(name string) string {
	return filepath.Join(testdataDir, name)
}

func TestLoadFile_Valid(t *testing.T) {
	tests := []struct {
		file    string
		name    string
		typ     string
		runtime string
		entry   string
	}{
		{"valid-ui.yaml", "hello-world", TypeUI, RuntimeGo, "hello-world"},
		{"valid-tool.json", "weather-tool", TypeTool, RuntimeGo, "weather-tool"},
		{"valid-lua.yaml", "lua-greeter", TypeGeneric, RuntimeLua, DefaultLuaEntrypoint},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			d, err := LoadFile(testPath(tt.file))
			if err != nil {
				t.Fatalf("LoadFile(%s) error: %v", tt.file, err)
			}
			if d.Name != tt.name {
				t.Errorf("Name = %q, want %q", d.Name, tt.name)
			}
			if d.Type != tt.typ {
				t.Errorf("Type = %q, want %q", d.Type, tt.typ)
			}
			if d.Runtime != tt.runtime {
				t.Errorf("Runtime = %q, want %q", d.Runtime, tt.runtime)
			}
			if d.Entrypoint != tt.entry {
				t.Errorf("Entrypoint = %q, want %q", d.Entrypoint, tt.entry)
			}
		})
	}
}

func TestLoadFile_UIBindings(t *testing.T) {
	d, err := LoadFile(testPath("valid-ui.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if len(d.Components) != 2 {
		t.Fatalf("Components = %d, want 2", len(d.Components))
	}
	if got := d.MountPoints["sidebar"]; len(got) != 1 || got[0] != "hello_sidebar" {
		t.Errorf("MountPoints[sidebar] = %v, want [hello_sidebar]", got)
	}
	if len(d.Hooks) != 1 || d.Hooks[0].EffectivePriority() != DefaultHookPriority {
		t.Errorf("Hooks = %+v, want one hook at default priority", d.Hooks)
	}

	// Settings keep declaration order.
	wantKeys := []string{"greeting", "greeting_color", "show_in_chat"}
	for i, key := range wantKeys {
		if d.SettingsSchema[i].Key != key {
			t.Errorf("SettingsSchema[%d].Key = %q, want %q", i, d.SettingsSchema[i].Key, key)
		}
	}
	if spec, ok := d.Setting("show_in_chat"); !ok || spec.Default != true {
		t.Errorf("Setting(show_in_chat) = %+v, %v", spec, ok)
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	d, err := LoadFile(testPath("valid-tool.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(d.Dependencies) != 1 || d.Dependencies[0] != "hello-world" {
		t.Errorf("Dependencies = %v, want deduplicated [hello-world]", d.Dependencies)
	}
	if got := d.Routes[0].Methods; len(got) != 1 || got[0] != "GET" {
		t.Errorf("Routes[0].Methods = %v, want [GET]", got)
	}

	lua, err := LoadFile(testPath("valid-lua.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := lua.Hooks[0].EffectivePriority(); got != 1 {
		t.Errorf("EffectivePriority() = %d, want 1", got)
	}
}

func TestLoadFile_SemanticIssues(t *testing.T) {
	files := []string{
		"check-undeclared-component.yaml",
		"check-routes-on-ui.yaml",
		"check-bad-default.yaml",
		"check-bad-version.yaml",
		"check-lua-escape.yaml",
	}
	for _, file := range files {
		t.Run(file, func(t *testing.T) {
			_, err := LoadFile(testPath(file))
			var invalid *InvalidError
			if !errors.As(err, &invalid) {
				t.Fatalf("LoadFile(%s) error = %v, want *InvalidError", file, err)
			}
			if len(invalid.Issues) == 0 {
				t.Fatal("expected at least one issue")
			}
			for _, issue := range invalid.Issues {
				if issue.Keyword != "check" {
					t.Errorf("issue %+v should come from Check", issue)
				}
			}
		})
	}
}

func TestCheck_BadDefaultReportsBoth(t *testing.T) {
	d, err := ParseFile(testPath("check-bad-default.yaml"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	issues := Check(d)
	if len(issues) != 2 {
		t.Fatalf("Check() = %d issues, want 2: %+v", len(issues), issues)
	}
	if issues[0].Path != "/settings_schema/0/default" || issues[1].Path != "/settings_schema/1/default" {
		t.Errorf("unexpected issue paths: %+v", issues)
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(testPath("valid-ui.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileYAML), data, 0644); err != nil {
		t.Fatal(err)
	}

	if !HasDescriptor(dir) {
		t.Fatal("HasDescriptor() = false, want true")
	}
	d, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Name != "hello-world" {
		t.Errorf("Name = %q, want hello-world", d.Name)
	}
}

func TestLoad_NoDescriptor(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrNoDescriptor) {
		t.Fatalf("Load() error = %v, want ErrNoDescriptor", err)
	}
}

func TestDescriptorClone(t *testing.T) {
	d, err := LoadFile(testPath("valid-ui.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	c := d.Clone()
	c.MountPoints["sidebar"][0] = "changed"
	c.SettingsSchema[0].Key = "changed"
	if d.MountPoints["sidebar"][0] != "hello_sidebar" || d.SettingsSchema[0].Key != "greeting" {
		t.Error("Clone shares state with the original")
	}
}

func TestMatchesType(t *testing.T) {
	tests := []struct {
		typ  string
		v    interface{}
		want bool
	}{
		{SettingString, "x", true},
		{SettingString, 1, false},
		{SettingInteger, 3, true},
		{SettingInteger, 3.0, true},
		{SettingInteger, 3.5, false},
		{SettingNumber, 3.5, true},
		{SettingNumber, "3.5", false},
		{SettingBoolean, false, true},
		{SettingBoolean, "true", false},
		{SettingArray, []interface{}{1}, true},
		{SettingObject, map[string]interface{}{}, true},
		{"color", "red", false},
	}
	for _, tt := range tests {
		if got := MatchesType(tt.typ, tt.v); got != tt.want {
			t.Errorf("MatchesType(%s, %#v) = %v, want %v", tt.typ, tt.v, got, tt.want)
		}
	}
}
