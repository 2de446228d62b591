// Package layout resolves and creates the managed extensions directory:
//
//	<root>/installed/<name>/   one directory per installed package
//	<root>/temp/               staging area for archive extraction
//	<root>/registry.db         metadata and settings records
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/webext-labs/webext/internal/branding"
)

// Directory and file name constants for the managed directory.
const (
	InstalledDir  = "installed"
	TempDir       = "temp"
	StateFile     = "registry.db"
	ExtensionsDir = "extensions"

	partialPrefix = ".partial-"
	trashPrefix   = ".trash-"
)

// Permission constants.
const (
	DirPermNormal  os.FileMode = 0755
	FilePermSecure os.FileMode = 0600
)

// Layout is a managed extensions directory.
type Layout struct {
	Root string
}

// New returns the layout rooted at root.
func New(root string) Layout { return Layout{Root: root} }

// ResolveRoot returns the managed directory. A configured value wins, with a
// leading "~/" expanded; otherwise ~/.webext/extensions is used.
func ResolveRoot(configured string) (string, error) {
	if configured != "" {
		if strings.HasPrefix(configured, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolving home directory: %w", err)
			}
			configured = filepath.Join(home, configured[2:])
		}
		return filepath.Abs(configured)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, branding.HomeDir(), ExtensionsDir), nil
}

// Installed returns the directory holding installed packages.
func (l Layout) Installed() string { return filepath.Join(l.Root, InstalledDir) }

// Temp returns the staging directory.
func (l Layout) Temp() string { return filepath.Join(l.Root, TempDir) }

// StatePath returns the bbolt state file path.
func (l Layout) StatePath() string { return filepath.Join(l.Root, StateFile) }

// PackageDir returns the managed location of a package directory name.
func (l Layout) PackageDir(dir string) string { return filepath.Join(l.Installed(), dir) }

// PartialDir returns a fresh scratch path for an in-progress copy.
func (l Layout) PartialDir() string {
	return filepath.Join(l.Installed(), partialPrefix+uuid.NewString())
}

// TrashDir returns a fresh scratch path for a package being removed.
func (l Layout) TrashDir() string {
	return filepath.Join(l.Installed(), trashPrefix+uuid.NewString())
}

// IsScratch reports whether a directory name under installed/ is a leftover
// partial copy or trash directory.
func IsScratch(name string) bool {
	return strings.HasPrefix(name, partialPrefix) || strings.HasPrefix(name, trashPrefix)
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9-]+`)

// SanitizeName maps a declared extension name onto a safe directory name.
func SanitizeName(name string) string {
	s := unsafeChars.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "extension"
	}
	return s
}

// Chmod sets file permissions. On Windows this is a no-op because Windows
// does not support Unix-style permission bits.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}
