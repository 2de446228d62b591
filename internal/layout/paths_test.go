package layout

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveRoot(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ResolveRoot("")
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	if want := filepath.Join(home, ".webext", "extensions"); got != want {
		t.Errorf("ResolveRoot(\"\") = %q, want %q", got, want)
	}

	got, err = ResolveRoot("~/exts")
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	if want := filepath.Join(home, "exts"); got != want {
		t.Errorf("ResolveRoot(~/exts) = %q, want %q", got, want)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"hello-world":   "hello-world",
		"Hello World!!": "hello-world",
		"../../etc":     "etc",
		"___":           "extension",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScratchNames(t *testing.T) {
	l := New(t.TempDir())
	if !IsScratch(filepath.Base(l.PartialDir())) || !IsScratch(filepath.Base(l.TrashDir())) {
		t.Error("partial and trash dirs should be recognized as scratch")
	}
	if IsScratch("hello-world") {
		t.Error("package dir should not be scratch")
	}
	if l.PartialDir() == l.PartialDir() {
		t.Error("PartialDir should be unique per call")
	}
}

func TestSetup(t *testing.T) {
	root := filepath.Join(t.TempDir(), "extensions")

	var out bytes.Buffer
	l, err := Setup(&out, root)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	for _, dir := range []string{l.Root, l.Installed(), l.Temp()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("%s was not created", dir)
		}
	}
	if strings.Count(out.String(), "[ OK ]") != 3 {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	out.Reset()
	if _, err := Setup(&out, root); err != nil {
		t.Fatalf("second Setup: %v", err)
	}
	if strings.Count(out.String(), "[SKIP]") != 3 {
		t.Errorf("second Setup should skip existing dirs:\n%s", out.String())
	}
}

func TestSetup_FileInTheWay(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, InstalledDir), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Setup(&bytes.Buffer{}, root); err == nil {
		t.Fatal("expected error when installed/ is a file")
	}
}
