package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/layout"
)

// ExcludePatterns are skipped when a package is copied into managed storage.
var ExcludePatterns = []string{
	"**/.git",
	"**/node_modules",
	"**/.DS_Store",
	"**/__pycache__",
	"**/*.pyc",
}

// Commit copies the package at root into managed storage under the sanitized
// form of name and returns the directory name it was stored under. The copy
// goes to a .partial-<uuid> directory first and is renamed into place; any
// failure removes the partial copy.
func Commit(l layout.Layout, root, name string) (string, error) {
	dirName := layout.SanitizeName(name)
	final := l.PackageDir(dirName)
	if _, err := os.Lstat(final); err == nil {
		return "", fmt.Errorf("%w: %s already exists in managed storage", extension.ErrNameConflict, dirName)
	}

	if err := os.MkdirAll(l.Installed(), layout.DirPermNormal); err != nil {
		return "", fmt.Errorf("creating %s: %w", l.Installed(), err)
	}
	partial := l.PartialDir()
	if err := CopyDir(root, partial); err != nil {
		os.RemoveAll(partial)
		return "", fmt.Errorf("copying %s: %w", root, err)
	}
	if err := os.Rename(partial, final); err != nil {
		os.RemoveAll(partial)
		return "", fmt.Errorf("moving package into place: %w", err)
	}
	return dirName, nil
}

// CopyDir recursively copies src to dst, skipping ExcludePatterns, symlinks
// and special files.
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && excluded(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case d.Type().IsRegular():
			return copyFile(path, target)
		}
		// Skip symlinks and other special files during copy.
		return nil
	})
}

func excluded(rel string) bool {
	for _, pattern := range ExcludePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, srcInfo.Mode().Perm())
}
