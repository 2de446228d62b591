package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/webext-labs/webext/internal/registry"
)

// runCLI executes the root command with a private home and extensions
// directory and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	listJSON, infoJSON, setupDir = false, false, ""
	versionShort, versionJSON = false, false
	createOutputDir, createType, createRuntime, createAuthor = "", "generic", "lua", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func testEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, "exts")
	t.Setenv("WEBEXT_EXTENSIONS_DIR", dir)
	t.Cleanup(viper.Reset)
	return dir
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("%v: unexpected error %v\noutput:\n%s", args, err, out)
	}
	return out
}

func assertContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Errorf("output does not contain %q:\n%s", want, out)
	}
}

func TestCommandFlow(t *testing.T) {
	testEnv(t)
	example := filepath.Join("..", "..", "examples", "hello-world")

	out := mustRun(t, "setup")
	assertContains(t, out, "✓ Extension environment ready")

	out = mustRun(t, "install", example)
	assertContains(t, out, "✓ Installed hello-world (v0.1.0)")

	out = mustRun(t, "list")
	assertContains(t, out, "- hello-world (v0.1.0) [INSTALLED]")

	out = mustRun(t, "enable", "hello-world")
	assertContains(t, out, "✓ Enabled hello-world")

	// Each command closes its registry, which deactivates but keeps the flag.
	out = mustRun(t, "list")
	assertContains(t, out, "- hello-world (v0.1.0) [INACTIVE]")
	out = mustRun(t, "info", "hello-world")
	assertContains(t, out, "Enabled:     true")
	assertContains(t, out, "Runtime:     go (built in: hello-world)")
	assertContains(t, out, "greeting = Hello from WebExt!")

	out = mustRun(t, "settings", "hello-world", "greeting=Hi there", "show_in_chat=false")
	assertContains(t, out, "✓ Saved settings of hello-world")
	assertContains(t, out, "greeting = Hi there")
	assertContains(t, out, "show_in_chat = false")

	out, err := runCLI(t, "settings", "hello-world", "show_in_chat=maybe")
	if !errors.Is(err, ErrReported) {
		t.Fatalf("expected ErrReported, got %v", err)
	}
	assertContains(t, out, "✗ ")

	out = mustRun(t, "initialize")
	assertContains(t, out, "✓ Enabled hello-world")

	out = mustRun(t, "disable", "hello-world")
	assertContains(t, out, "✓ Disabled hello-world")

	out = mustRun(t, "uninstall", "hello-world")
	assertContains(t, out, "✓ Uninstalled hello-world")

	out = mustRun(t, "list")
	assertContains(t, out, "No extensions installed.")
}

func TestFailuresAreReported(t *testing.T) {
	testEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"install missing source", []string{"install", "/does/not/exist"}, "cannot resolve source"},
		{"enable unknown", []string{"enable", "ghost"}, "extension not found: ghost"},
		{"info unknown", []string{"info", "ghost"}, "extension not found: ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if !errors.Is(err, ErrReported) {
				t.Fatalf("expected ErrReported, got %v", err)
			}
			assertContains(t, out, "✗ "+tt.want)
		})
	}
}

func TestListJSON(t *testing.T) {
	testEnv(t)
	mustRun(t, "install", filepath.Join("..", "..", "examples", "weather-tool"))

	out := mustRun(t, "list", "--json")
	assertContains(t, out, `"name": "weather-tool"`)
	assertContains(t, out, `"state": "installed"`)
}

func TestConfigGetSet(t *testing.T) {
	testEnv(t)
	out := mustRun(t, "config", "set", "server.port", "6001")
	assertContains(t, out, "Set server.port = 6001")

	out = mustRun(t, "config", "get", "server.port")
	if strings.TrimSpace(out) != "6001" {
		t.Errorf("config get = %q, want 6001", out)
	}
}

func TestVersion(t *testing.T) {
	testEnv(t)
	buildVersion, buildCommit, buildDate = "1.2.3", "abc", "today"
	out := mustRun(t, "version")
	assertContains(t, out, "version 1.2.3 (commit: abc, built: today)")

	out = mustRun(t, "version", "--short")
	if strings.TrimSpace(out) != "1.2.3" {
		t.Errorf("version --short = %q", out)
	}
}

func TestListLine(t *testing.T) {
	e := registry.Entry{Name: "demo", State: registry.StateActive}
	if got, want := listLine(e), "- demo (v?) [ACTIVE]"; got != want {
		t.Errorf("listLine() = %q, want %q", got, want)
	}
	e.State, e.Error = registry.StateInstalled, "boom"
	if got, want := listLine(e), "- demo (v?) [INSTALLED] error: boom"; got != want {
		t.Errorf("listLine() = %q, want %q", got, want)
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"a=1", "b=true", "c=hello world", `d="42"`, "e=null", "f=", "g=1.5"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"a": 1, "b": true, "c": "hello world", "d": "42", "e": nil, "f": "", "g": 1.5}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %#v, want %#v", k, got[k], v)
		}
	}

	for _, bad := range [][]string{{"novalue"}, {"=x"}, {"k=[1, 2]"}} {
		if _, err := parseAssignments(bad); err == nil {
			t.Errorf("parseAssignments(%v) succeeded", bad)
		}
	}
}

func TestDisplayVersion(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1.0.0", "1.0.0"},
		{"v2.1", "2.1.0"},
		{"1.0.0-beta.1", "1.0.0-beta.1 (prerelease)"},
		{"not-a-version", "not-a-version"},
	}
	for _, tt := range tests {
		if got := displayVersion(tt.in); got != tt.want {
			t.Errorf("displayVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServeAddr(t *testing.T) {
	testEnv(t)
	mustRun(t, "version")
	serveHost, servePort = "", 0
	if got := serveAddr(); got != "localhost:5000" {
		t.Errorf("serveAddr() = %q", got)
	}
	serveHost, servePort = "0.0.0.0", 8080
	t.Cleanup(func() { serveHost, servePort = "", 0 })
	if got := serveAddr(); got != "0.0.0.0:8080" {
		t.Errorf("serveAddr() = %q", got)
	}
}

func TestCreateThenInstall(t *testing.T) {
	testEnv(t)
	outDir := filepath.Join(t.TempDir(), "my-tool")

	out := mustRun(t, "create", "my-tool", "--type", "tool", "--output-dir", outDir)
	assertContains(t, out, "✓ Created "+outDir)
	assertContains(t, out, "main.lua")

	out = mustRun(t, "install", outDir)
	assertContains(t, out, "✓ Installed my-tool (v0.1.0)")
	out = mustRun(t, "enable", "my-tool")
	assertContains(t, out, "✓ Enabled my-tool")

	if _, err := runCLI(t, "create", "Bad_Name"); err == nil {
		t.Error("invalid name should fail")
	}
}
